package visualtest

import (
	"errors"
	"fmt"
)

// Code classifies comparison failures.
type Code int

const (
	CodeUnknown Code = iota
	// CodeInvalidInput: empty candidate, empty name or threshold out of range.
	CodeInvalidInput
	// CodeDecode: the baseline or candidate bytes are not a readable image.
	CodeDecode
	// CodeDimensionMismatch: baseline and candidate differ in width or height.
	CodeDimensionMismatch
	// CodeVisualMismatch: more than zero pixels differ beyond the threshold.
	CodeVisualMismatch
	// CodeIO: reading or writing a baseline or artifact failed.
	CodeIO
	// CodeNotFound: a baseline or artifact that must exist does not.
	CodeNotFound
	// CodeCapture: the screenshot provider failed.
	CodeCapture
	// CodeInternal: encoding or diffing failed unexpectedly.
	CodeInternal
)

var codeNames = map[Code]string{
	CodeUnknown:           "UNKNOWN",
	CodeInvalidInput:      "INVALID_INPUT",
	CodeDecode:            "DECODE",
	CodeDimensionMismatch: "DIMENSION_MISMATCH",
	CodeVisualMismatch:    "VISUAL_MISMATCH",
	CodeIO:                "IO",
	CodeNotFound:          "NOT_FOUND",
	CodeCapture:           "CAPTURE",
	CodeInternal:          "INTERNAL",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the error type returned by the comparator.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// WithMetadata adds a key/value pair to the error.
func (e *Error) WithMetadata(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// IsCode reports whether err, or any error it wraps, is an *Error with code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
