// Package errs defines the error taxonomy shared by the redaction pipelines.
//
// Every failure that crosses a package boundary is classified into one of four
// codes. Callers match codes with errors.Is against the exported sentinels:
//
//	if errors.Is(err, errs.ErrOutOfRange) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Code identifies the class of a failure.
type Code string

const (
	// InvalidArgument covers malformed coordinate input and bad CLI usage.
	InvalidArgument Code = "INVALID_ARGUMENT"
	// OutOfRange covers page indexes beyond the document bounds.
	OutOfRange Code = "OUT_OF_RANGE"
	// IO covers unreadable input, unwritable output and swap failures.
	IO Code = "IO_ERROR"
	// Truncation is informational: coordinates were dropped to reach a multiple of four.
	Truncation Code = "TRUNCATION"
)

// Error is a classified failure.
type Error struct {
	Code    Code
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a sentinel (or any *Error) with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Path == "" && t.Message == "" && t.Cause == nil
}

var (
	ErrInvalidArgument = &Error{Code: InvalidArgument}
	ErrOutOfRange      = &Error{Code: OutOfRange}
	ErrIO              = &Error{Code: IO}
	ErrTruncation      = &Error{Code: Truncation}
)

// New builds a classified error without a cause.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause. A nil cause yields nil. If cause already carries a
// code it is returned unchanged so the innermost classification wins.
func Wrap(code Code, op, path string, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return cause
	}
	return &Error{Code: code, Op: op, Path: path, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
