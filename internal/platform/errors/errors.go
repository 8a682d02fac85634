// Package errors provides the structured error type returned by the
// simulation engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeConfiguration rejects a run before any trial starts: cyclic
	// workflow, non-positive iterations, confidence level outside (0,1),
	// or malformed workspace input.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeNumericAnomaly aborts a run when a metric resolves to NaN or Inf.
	CodeNumericAnomaly Code = "NUMERIC_ANOMALY"

	// CodePartialResultTimeout is only returned when the budget expired
	// before a single trial finished. Otherwise timeouts surface as a
	// partial RunResult.
	CodePartialResultTimeout Code = "PARTIAL_RESULT_TIMEOUT"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context, e.g. offending node ids
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf formats message with args.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks; only the code is compared.
var (
	ErrConfiguration        = New(CodeConfiguration, "configuration error")
	ErrNumericAnomaly       = New(CodeNumericAnomaly, "numeric anomaly")
	ErrPartialResultTimeout = New(CodePartialResultTimeout, "timed out before any trial completed")
)

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
