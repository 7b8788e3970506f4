package data

import (
	"errors"
	"fmt"
)

// ErrorClass groups data errors by what went wrong.
type ErrorClass string

const (
	// ErrorClassLoad indicates the document could not be read or parsed.
	ErrorClassLoad ErrorClass = "load"

	// ErrorClassLookup indicates a pointer did not resolve to a node.
	ErrorClassLookup ErrorClass = "lookup"

	// ErrorClassMismatch indicates the node exists but has a different kind
	// than the one requested.
	ErrorClassMismatch ErrorClass = "mismatch"

	// ErrorClassEncoding indicates text that cannot cross the boundary,
	// such as invalid UTF-8 or an embedded NUL byte.
	ErrorClassEncoding ErrorClass = "encoding"

	// ErrorClassHandle indicates an unknown, stale or busy handle.
	ErrorClassHandle ErrorClass = "handle"
)

// Error codes.
const (
	ErrCodeLoadFailed    = "LOAD_FAILED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeTypeMismatch  = "TYPE_MISMATCH"
	ErrCodeInvalidText   = "INVALID_TEXT"
	ErrCodeInvalidHandle = "INVALID_HANDLE"
	ErrCodeHandleBusy    = "HANDLE_BUSY"
)

// Error is a classified data access failure.
type Error struct {
	Class   ErrorClass
	Code    string
	Message string

	// Pointer is the JSON Pointer being resolved, if any.
	Pointer string

	// Path is the document source path for load errors.
	Path string

	// Expected and Found are set for mismatch errors.
	Expected Kind
	Found    Kind

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on class and code so that sentinel comparisons work:
//
//	errors.Is(err, &data.Error{Class: data.ErrorClassLookup, Code: data.ErrCodeNotFound})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewLoadError reports that the document at path could not be opened.
func NewLoadError(path string, err error) *Error {
	return &Error{
		Class:   ErrorClassLoad,
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("could not load %s", path),
		Path:    path,
		Err:     err,
	}
}

// NewNotFoundError reports that pointer does not resolve.
func NewNotFoundError(pointer string) *Error {
	return &Error{
		Class:   ErrorClassLookup,
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("could not find %s in data", pointer),
		Pointer: pointer,
	}
}

// NewMismatchError reports that a node of kind found was asked for as expected.
func NewMismatchError(expected, found Kind) *Error {
	return &Error{
		Class:    ErrorClassMismatch,
		Code:     ErrCodeTypeMismatch,
		Message:  fmt.Sprintf("expected %s, found %s", expected, found),
		Expected: expected,
		Found:    found,
	}
}

// NewEncodingError reports text that cannot be represented at the boundary.
func NewEncodingError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassEncoding,
		Code:    ErrCodeInvalidText,
		Message: message,
		Err:     err,
	}
}

// NewHandleError reports an unusable handle.
func NewHandleError(code, message string) *Error {
	return &Error{
		Class:   ErrorClassHandle,
		Code:    code,
		Message: message,
	}
}

// WithPointer attaches the pointer being resolved.
func (e *Error) WithPointer(pointer string) *Error {
	e.Pointer = pointer
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsLoad returns true if the error is a load failure.
func IsLoad(err error) bool { return hasClass(err, ErrorClassLoad) }

// IsLookup returns true if the error is an unresolved pointer.
func IsLookup(err error) bool { return hasClass(err, ErrorClassLookup) }

// IsMismatch returns true if the error is a kind mismatch.
func IsMismatch(err error) bool { return hasClass(err, ErrorClassMismatch) }

// IsEncoding returns true if the error is a text encoding failure.
func IsEncoding(err error) bool { return hasClass(err, ErrorClassEncoding) }

// IsHandle returns true if the error concerns an unusable handle.
func IsHandle(err error) bool { return hasClass(err, ErrorClassHandle) }

// ClassOf returns the class of a data error, or "" for foreign errors.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}
