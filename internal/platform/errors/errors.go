// Package errors defines typed application errors with HTTP mapping.
package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
)

// Kind classifies application failures for consistent HTTP mapping.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindInvalidInput  Kind = "invalid_input"
	KindUnauthorized  Kind = "unauthorized"
	KindStateConflict Kind = "state_conflict"
	KindNotFound      Kind = "not_found"
	KindIO            Kind = "io"
)

// Code is a machine-readable status reported back to the caller.
type Code string

const (
	// CodeInvalidAuth covers every credential failure. Unknown identity and
	// wrong password are deliberately indistinguishable.
	CodeInvalidAuth Code = "invalid_auth"

	// CodeIncomplete indicates the required consent flag was missing.
	CodeIncomplete Code = "incomplete"

	// CodeNoFile indicates the upload request carried no file.
	CodeNoFile Code = "no_file"

	// CodeInvalid indicates a file failed size or extension validation.
	CodeInvalid Code = "invalid"

	// CodeConfirmed indicates a mutation was attempted on a locked slot.
	CodeConfirmed Code = "confirmed"

	// CodeIOError indicates an underlying storage failure.
	CodeIOError Code = "io_error"

	// CodeNotFound indicates the requested document is absent.
	CodeNotFound Code = "not_found"
)

// Error is a typed application failure.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

// Error renders the human-readable message.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
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

// E builds a typed Error.
func E(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds a typed Error around an underlying cause. The cause's message
// is appended so storage failures surface verbatim to the caller.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	if cause != nil {
		message = strings.TrimSpace(message + ": " + cause.Error())
	}
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the machine code from an error chain, or CodeIOError for
// untyped failures.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return CodeIOError
	}
	return appErr.Code
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindStateConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindIO:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
