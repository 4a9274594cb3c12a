package deploy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Result is the terminal state of a deploy or validate job as reported by the Metadata API.
type Result struct {
	ID                    string  `json:"id"`
	Status                string  `json:"status"` // Pending, InProgress, Succeeded, SucceededPartial, Failed, Canceling, Canceled
	Done                  bool    `json:"done"`
	Success               bool    `json:"success"`
	CheckOnly             bool    `json:"checkOnly"`
	NumberComponentsTotal FlexInt `json:"numberComponentsTotal"`
	NumberComponentErrors FlexInt `json:"numberComponentErrors"`
	NumberTestsTotal      FlexInt `json:"numberTestsTotal"`
	NumberTestErrors      FlexInt `json:"numberTestErrors"`
	ErrorMessage          string  `json:"errorMessage,omitempty"`
	ErrorStatusCode       string  `json:"errorStatusCode,omitempty"`

	Details *Details `json:"details,omitempty"`

	// RawDetails keeps the details payload exactly as received.
	RawDetails json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the result and keeps a copy of the raw details payload.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var aux struct {
		plain
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Result(aux.plain)
	r.Details = nil
	r.RawDetails = nil
	if len(aux.Details) > 0 && !bytes.Equal(bytes.TrimSpace(aux.Details), []byte("null")) {
		var details Details
		if err := json.Unmarshal(aux.Details, &details); err != nil {
			return err
		}
		r.Details = &details
		r.RawDetails = append(json.RawMessage(nil), aux.Details...)
	}
	return nil
}

// DetailsJSON renders the details payload for inclusion in a text report.
func (r *Result) DetailsJSON() string {
	if r == nil {
		return "{}"
	}
	var buf bytes.Buffer
	if len(r.RawDetails) > 0 {
		if err := json.Indent(&buf, r.RawDetails, "", "  "); err == nil {
			return buf.String()
		}
	}
	if r.Details == nil {
		return "{}"
	}
	out, err := json.MarshalIndent(r.Details, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// Details carries the failure data of a completed job.
type Details struct {
	ComponentFailures List[ComponentFailure] `json:"componentFailures,omitempty"`
	RunTestResult     *RunTestResult         `json:"runTestResult,omitempty"`
}

// ComponentFailure is a metadata component that failed to compile or save.
type ComponentFailure struct {
	ComponentType string  `json:"componentType,omitempty"`
	FullName      string  `json:"fullName,omitempty"`
	FileName      string  `json:"fileName,omitempty"`
	Problem       string  `json:"problem,omitempty"`
	ProblemType   string  `json:"problemType,omitempty"`
	LineNumber    FlexInt `json:"lineNumber,omitempty"`
	ColumnNumber  FlexInt `json:"columnNumber,omitempty"`
}

// RunTestResult holds the Apex test outcome of a job.
type RunTestResult struct {
	NumTestsRun          FlexInt               `json:"numTestsRun,omitempty"`
	NumFailures          FlexInt               `json:"numFailures,omitempty"`
	Failures             List[TestFailure]     `json:"failures,omitempty"`
	CodeCoverageWarnings List[CoverageWarning] `json:"codeCoverageWarnings,omitempty"`
}

// TestFailure is a failed Apex test method.
type TestFailure struct {
	Name       string `json:"name,omitempty"`
	MethodName string `json:"methodName,omitempty"`
	Message    string `json:"message,omitempty"`
	StackTrace string `json:"stackTrace,omitempty"`
	Type       string `json:"type,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
}

// CoverageWarning is a code coverage shortfall reported with the test run.
type CoverageWarning struct {
	Name      string `json:"name,omitempty"`
	Message   string `json:"message,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// List decodes a JSON array, a lone object or null. The Metadata API collapses
// single-element lists into a bare object.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return err
	}
	*l = List[T]{item}
	return nil
}

// FlexInt decodes a JSON number or a numeric string. Non-numeric strings decode to zero.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = FlexInt(int(n))
	return nil
}
