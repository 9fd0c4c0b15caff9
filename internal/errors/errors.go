// Package errors defines the structured error codes used across the
// analytics engine. Source-access problems are fatal to a run; field and
// record level problems are recovered locally and only tallied.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// CodeSourceAccess covers unreadable files and unusable headers.
	// Always fatal before any aggregation begins.
	CodeSourceAccess Code = "SOURCE_ACCESS"
	// CodeRecordRejected covers records missing a mandatory field
	// (open date). The record is excluded and tallied; the run continues.
	CodeRecordRejected Code = "RECORD_REJECTED"
	// CodeFieldParse covers a single unparseable field value. The field is
	// nulled and the record still processed.
	CodeFieldParse Code = "FIELD_PARSE"
	// CodeConfig covers invalid configuration.
	CodeConfig Code = "CONFIG"
	// CodeExport covers output-table write failures.
	CodeExport Code = "EXPORT"
)

// RunError is a structured error carrying a failure class and an
// optional underlying cause.
type RunError struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.Cause
}

// New creates a RunError without a cause.
func New(code Code, message string) *RunError {
	return &RunError{Code: code, Message: message}
}

// Wrap creates a RunError around an underlying cause.
func Wrap(code Code, message string, cause error) *RunError {
	return &RunError{Code: code, Message: message, Cause: cause}
}

// SourceAccess wraps a fatal source failure.
func SourceAccess(message string, cause error) *RunError {
	return Wrap(CodeSourceAccess, message, cause)
}

// IsFatal reports whether err aborts the whole run rather than a single
// record or field.
func IsFatal(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == CodeSourceAccess || re.Code == CodeConfig
	}
	// Unknown errors abort rather than risk half-populated output.
	return err != nil
}

// CodeOf extracts the failure class from err, or empty when err is not a
// RunError.
func CodeOf(err error) Code {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
