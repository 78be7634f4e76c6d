package utils

import (
	"errors"
	"fmt"
)

// Process exit codes used by the binaries.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnavailable = 3
)

// AppError wraps an operation, human-facing message, and underlying error.
// Code is the process exit status to use when the error reaches main.
type AppError struct {
	Op   string
	Msg  string
	Code int
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError with the generic failure code.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Code: ExitFailure, Err: err}
}

// NewAppErrorCode constructs an AppError with an explicit exit code.
func NewAppErrorCode(op, msg string, code int, err error) error {
	return &AppError{Op: op, Msg: msg, Code: code, Err: err}
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return ExitFailure
}
