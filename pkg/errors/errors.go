package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones and wraps of a
// predefined error satisfy errors.Is against it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err with the code and status of a predefined error.
func WrapAs(base *Error, err error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return Wrap(err, base.Code, base.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrStore covers store write/read failures that are not a missing or duplicate record.
	ErrStore = New("STORE_ERROR", http.StatusInternalServerError, "failed to perform action")
	// ErrBusy rejects a mutation while another one on the same record is in flight.
	ErrBusy = New("MUTATION_IN_PROGRESS", http.StatusConflict, "another change to this student is in progress")
	// ErrLookup is returned when a certificate is requested for an unknown student.
	ErrLookup = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrRender = New("RENDER_ERROR", http.StatusInternalServerError, "failed to generate certificate")
	ErrExport = New("EXPORT_ERROR", http.StatusInternalServerError, "failed to export students")
	// ErrExpired marks a download link past its expiry.
	ErrExpired = New("LINK_EXPIRED", http.StatusGone, "download link expired")
)

// IsStoreError reports whether err originates from a store rejection.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStore) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
