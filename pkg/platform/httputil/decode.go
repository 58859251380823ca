package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/validation"
)

// DecodeJSON decodes and validates a JSON request body into the target type.
// On failure it writes an error response and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[models.LoginRequest](w, r)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := validation.Validate(&req); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
