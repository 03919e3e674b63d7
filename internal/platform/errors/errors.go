package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context, never secrets
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
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

// HTTPStatus returns the transport status for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
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

// BadInput reports missing or malformed caller input.
func BadInput(code Code, cause error) *Error {
	return Wrap(code, string(code), cause)
}

// Forbidden reports a policy or token-validation denial.
func Forbidden(code Code, cause error) *Error {
	return Wrap(code, string(code), cause)
}

// NotFound reports an unknown identity, operation, or entry.
func NotFound(code Code) *Error {
	return New(code, string(code))
}

// Unexpected wraps a remote-call or storage failure.
func Unexpected(message string, cause error) *Error {
	if message == "" {
		message = string(CodeUnexpected)
	}
	return Wrap(CodeUnexpected, message, cause)
}

// Unexpectedf formats a message for an unexpected failure.
func Unexpectedf(cause error, format string, args ...any) *Error {
	return Wrap(CodeUnexpected, fmt.Sprintf(format, args...), cause)
}

// As extracts a domain error from err, classifying untyped errors as
// UnexpectedException.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr
	}
	return Unexpected("", err)
}

// CodeOf returns the code carried by err, or CodeUnexpected.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return As(err).Code
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return stderrors.Is(err, &Error{Code: code})
}
