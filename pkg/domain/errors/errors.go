// Package errors defines the coded error carried between the sf adapters, the deploy handler
// and the tool layer.
package errors

import (
	stderrors "errors"
	"strings"
)

// Error is a failure tagged with a Code and the layer that raised it.
type Error struct {
	Code    Code
	Domain  string
	Message string
	Cause   error
}

// New returns an Error. cause may be nil.
func New(code Code, domain, message string, cause error) *Error {
	return &Error{Code: code, Domain: domain, Message: message, Cause: cause}
}

// Error renders "[domain:CODE] message" followed by ": cause" when there is one.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[" + e.Domain + ":" + string(e.Code) + "] " + e.Message)
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so HasCode works through wrapping.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if !stderrors.As(err, &e) {
		return CodeUnknown
	}
	return e.Code
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return stderrors.Is(err, &Error{Code: code})
}

// As is the standard library errors.As, for callers that import this package as errors.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
