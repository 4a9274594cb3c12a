package tools

import (
	"fmt"
)

// ExtractOptionalStringParam extracts an optional string parameter. A present value of the
// wrong type is an error.
func ExtractOptionalStringParam(args map[string]interface{}, key string) (string, error) {
	value, exists := args[key]
	if !exists || value == nil {
		return "", nil
	}

	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string", key)
	}
	return str, nil
}

// ExtractOptionalBoolParam extracts an optional boolean parameter, defaulting to false.
func ExtractOptionalBoolParam(args map[string]interface{}, key string) (bool, error) {
	value, exists := args[key]
	if !exists || value == nil {
		return false, nil
	}

	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %s must be a boolean", key)
	}
	return b, nil
}

// ExtractStringArrayParam safely extracts a string array parameter
func ExtractStringArrayParam(args map[string]interface{}, key string) ([]string, error) {
	value, exists := args[key]
	if !exists || value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %s must be an array of strings", key)
			}
			result[i] = str
		}
		return result, nil
	default:
		return nil, fmt.Errorf("parameter %s must be an array", key)
	}
}
