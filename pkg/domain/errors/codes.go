package errors

// Code classifies an Error. Handlers branch on codes, never on message text.
type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInternalError       Code = "INTERNAL_ERROR"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeInvalidParameter    Code = "INVALID_PARAMETER"
	CodeMissingParameter    Code = "MISSING_PARAMETER"
	CodeIoError             Code = "IO_ERROR"
	CodeFileNotFound        Code = "FILE_NOT_FOUND"
	CodeTimeoutError        Code = "TIMEOUT_ERROR"
	CodeCommandFailed       Code = "COMMAND_FAILED"              // sf exited non-zero or reported status != 0
	CodeOrgNotAllowed       Code = "ORG_NOT_ALLOWED"             // rejected by the allow-list
	CodeOrgNotFound         Code = "ORG_NOT_FOUND"               // org could not be resolved
	CodeProjectInvalid      Code = "PROJECT_INVALID"             // sfdx-project.json missing or malformed
	CodeTrackingUnsupported Code = "SOURCE_TRACKING_UNSUPPORTED" // no explicit targets and the org does not track source
	CodeToolExecutionFailed Code = "TOOL_EXECUTION_FAILED"
)
