package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError carries a stable code next to a human-readable message.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap adds context to err, keeping the innermost code.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{Code: appErr.Code, Message: message, Cause: err}
	}
	return &AppError{Code: CodeInternalError, Message: message, Cause: err}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode replaces the code of err.
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{Code: code, Message: appErr.Message, Cause: appErr.Cause}
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode returns the code of the first AppError in err's chain, or "UNKNOWN".
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

const (
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeMissingSheet  = "MISSING_SHEET"
	CodeMissingColumn = "MISSING_COLUMN"
	CodeHostWrite     = "HOST_WRITE"
	CodeRunInProgress = "RUN_IN_PROGRESS"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// MissingSheet is a precondition failure naming the absent sheet.
func MissingSheet(sheet string) *AppError {
	return New(CodeMissingSheet, fmt.Sprintf("required sheet %q not found", sheet))
}

// MissingColumn is a precondition failure naming the absent column.
func MissingColumn(column, sheet string) *AppError {
	return New(CodeMissingColumn, fmt.Sprintf("required column %q not found in sheet %q", column, sheet))
}

// HostWrite wraps a transport failure during a chunked write.
func HostWrite(sheet, phase string, cause error) *AppError {
	return &AppError{
		Code:    CodeHostWrite,
		Message: fmt.Sprintf("%s %q failed", phase, sheet),
		Cause:   cause,
	}
}

func RunInProgress(target string) *AppError {
	return New(CodeRunInProgress, fmt.Sprintf("a run against %s is already in progress", target))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
