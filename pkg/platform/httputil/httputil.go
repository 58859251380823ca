// Package httputil writes JSON responses in the backend's wire shapes. The
// in-process fake backend used by tests serves through it.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/validation"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// ErrorBody is the backend's error shape.
type ErrorBody struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Detail  string              `json:"detail,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// WriteError centralizes domain error translation to HTTP responses.
// Validation errors carrying field errors are written as details.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorBody{Message: "internal error"})
		return
	}

	body := ErrorBody{Message: domainErr.Message}
	if details := fieldDetails(domainErr.Err); len(details) > 0 {
		body.Details = details
	} else {
		body.Detail = domainErr.Message
	}
	WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), body)
}

func fieldDetails(err error) map[string][]string {
	if err == nil {
		return nil
	}
	var out map[string][]string
	for _, e := range unwrapAll(err) {
		var fe validation.FieldError
		if errors.As(e, &fe) && fe.Field != "" {
			if out == nil {
				out = make(map[string][]string)
			}
			out[fe.Field] = append(out[fe.Field], fe.Message)
		}
	}
	return out
}

func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeBusy:
		return http.StatusTooManyRequests
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTenantRequired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
