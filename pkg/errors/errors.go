package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable error code that survives wrapping and maps onto an HTTP status.
type Code string

const (
	CodeInvalid  Code = "invalid"
	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"
	CodeInternal Code = "internal"
)

// FieldsKey is the Meta key holding per-field validation messages.
const FieldsKey = "fields"

// AppError is a structured error carrying a code, a client-safe message and the raw cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AppError) Unwrap() error { return e.Err }

// WithMeta attaches metadata to the error.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

// Fields returns the field-level messages of a validation error, if any.
func (e *AppError) Fields() map[string]string {
	if e == nil || e.Meta == nil {
		return nil
	}
	fields, _ := e.Meta[FieldsKey].(map[string]string)
	return fields
}

// Status maps the code onto an HTTP status.
func (e *AppError) Status() int {
	switch e.Code {
	case CodeInvalid:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// Invalid builds a validation error listing the offending fields.
func Invalid(message string, fields map[string]string) *AppError {
	return New(CodeInvalid, message).WithMeta(FieldsKey, fields)
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// Internal wraps err as an internal error unless it already is an AppError.
func Internal(err error, message string) error {
	var ae *AppError
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(err, CodeInternal, message)
}
