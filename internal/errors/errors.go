package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-specific error type
type AppError struct {
	Code    string
	Message string
	Path    string // filesystem path involved, set for IO failures
	Cause   error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// wraps an error with a code and message
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapPath wraps an error and records the filesystem path it concerns
func WrapPath(err error, code, message, path string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Path:    path,
		Cause:   err,
	}
}

// Error code constants
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInvalidArg = "INVALID_ARGUMENT"
	CodeParse      = "PARSE_ERROR"     // URL not recognized
	CodeTransient  = "TRANSIENT_ERROR" // Provider network/rate-limit/timeout, caller may retry
	CodeStorage    = "STORAGE_ERROR"
	CodeIO         = "IO_ERROR"
	CodeConflict   = "CONFLICT"         // Resource already exists (UNIQUE violation)
	CodeDependency = "DEPENDENCY_ERROR" // Foreign key constraint violation
)

// CodeOf returns the code of the outermost AppError in the chain,
// or CodeInternal for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND error
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsRetryable reports whether the caller may retry the failed operation
func IsRetryable(err error) bool {
	return Is(err, CodeTransient)
}

// IsStorage reports whether err originated in local persistence
func IsStorage(err error) bool {
	switch CodeOf(err) {
	case CodeStorage, CodeConflict, CodeDependency:
		return true
	}
	return false
}
