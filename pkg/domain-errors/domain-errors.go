package domainerrors

import "errors"

// Code represents an error category independent of the transport layer.
// Codes describe what went wrong for the caller, not which HTTP status carried it.
type Code string

const (
	CodeNotFound       Code = "not_found"
	CodeBadRequest     Code = "bad_request"
	CodeInvalidInput   Code = "invalid_input"
	CodeValidation     Code = "validation_failed"
	CodeInternal       Code = "internal_error"
	CodeUnauthorized   Code = "unauthorized"
	CodeForbidden      Code = "forbidden"
	CodeInvalidState   Code = "invalid_state"
	CodeBusy           Code = "busy"
	CodeUnavailable    Code = "unavailable"
	CodeTenantRequired Code = "tenant_required"

	// CodeHandled marks a backend failure that the request pipeline already
	// reported to the user. Callers should not notify again.
	CodeHandled Code = "handled"
)

// Error wraps client or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across services, stores and the wizard.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
