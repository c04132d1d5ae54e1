// Package apperror provides a structured way to handle application errors
// with specific codes, severity levels, and additional details. It also
// includes utilities for mapping errors onto HTTP status codes at the
// service boundary.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Validation
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeMissingInput  ErrorCode = "MISSING_INPUT"
	CodeUnknownInput  ErrorCode = "UNKNOWN_INPUT"
	CodeInvalidTime   ErrorCode = "INVALID_TIME"
	CodeInvalidStep   ErrorCode = "INVALID_STEP"
	CodeInvalidValue  ErrorCode = "INVALID_VALUE"
	CodeUnknownPoint  ErrorCode = "UNKNOWN_POINT"
	CodeInvalidWindow ErrorCode = "INVALID_WINDOW"

	// Simulation lifecycle
	CodeOutOfRange     ErrorCode = "OUT_OF_RANGE"
	CodeNotInitialized ErrorCode = "NOT_INITIALIZED"
	CodeEngineStep     ErrorCode = "ENGINE_STEP_ERROR"
	CodeEngineReset    ErrorCode = "ENGINE_RESET_ERROR"
	CodeWarmupFailed   ErrorCode = "WARMUP_FAILED"

	// General
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeUnavailable     ErrorCode = "UNAVAILABLE"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	// SeverityWarning indicates a non-critical issue that can be ignored or automatically resolved.
	SeverityWarning Severity = iota
	// SeverityError indicates a standard error that requires attention.
	SeverityError
	// SeverityCritical indicates a severe error that might require immediate human intervention.
	SeverityCritical
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a custom error type that includes an ErrorCode, message,
// an optional field, additional details, an underlying cause, and a severity level.
type Error struct {
	Code     ErrorCode      // Code is a unique identifier for the type of error.
	Message  string         // Message is a human-readable description of the error.
	Field    string         // Field indicates which input field caused the error, if applicable.
	Details  map[string]any // Details provides additional structured information about the error.
	Cause    error          // Cause is the underlying error that triggered this application error.
	Severity Severity       // Severity indicates the criticality level of the error.
}

// Error implements the error interface, returning a string representation of the error.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error, allowing for error chain introspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps an ErrorCode to an HTTP status code for the REST boundary.
//
// The externally distinguishable kinds required by the control-loop
// contract keep distinct codes in the response body even when they share
// an HTTP status: validation, out-of-range and not-initialized are caller
// mistakes (400), engine step failures are reported as 500 with
// ENGINE_STEP_ERROR so callers can decide to retry with adjusted controls.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeMissingInput, CodeUnknownInput,
		CodeInvalidTime, CodeInvalidStep, CodeInvalidValue,
		CodeUnknownPoint, CodeInvalidWindow, CodeInvalidArgument,
		CodeOutOfRange, CodeNotInitialized:
		return http.StatusBadRequest

	case CodeNotFound:
		return http.StatusNotFound

	case CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeUnavailable:
		return http.StatusServiceUnavailable

	case CodeEngineStep, CodeEngineReset, CodeWarmupFailed:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// New creates a new application error with the given code and message.
// The default severity is SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// Newf creates a new application error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithField creates a new application error with the given code, message, and field.
// The default severity is SeverityError.
func NewWithField(code ErrorCode, message, field string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Field:    field,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// NewCritical creates a new application error with SeverityCritical.
func NewCritical(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityCritical,
	}
}

// Wrap creates a new application error that wraps an existing error,
// providing additional context with a code and message.
// The default severity is SeverityError.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Cause:    cause,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code ErrorCode, format string, args ...any) *Error {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// WithDetails adds a key-value pair to the error's details map and returns the modified error.
func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// WithField sets the field associated with the error and returns the modified error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error and returns the modified error.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is checks if the given error is an application error with a matching ErrorCode.
// It uses errors.As to unwrap the error chain.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from an error. If the error is not an *Error,
// it returns CodeInternal.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus extracts an HTTP status from any error. Non-application
// errors map to 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsValidation reports whether the error is one of the pre-mutation
// validation kinds (the session state is guaranteed untouched).
func IsValidation(err error) bool {
	switch Code(err) {
	case CodeValidation, CodeMissingInput, CodeUnknownInput,
		CodeInvalidTime, CodeInvalidStep, CodeInvalidValue,
		CodeUnknownPoint, CodeInvalidWindow, CodeInvalidArgument:
		return true
	}
	return false
}

// IsCritical checks if the given error is an application error with SeverityCritical.
func IsCritical(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// Predefined errors for common scenarios.
var (
	ErrNotInitialized = New(CodeNotInitialized, "simulation has not been initialized; call initialize first")
	ErrRateLimited    = New(CodeRateLimited, "too many requests")
)
