package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "meridian/pkg/domain-errors"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("domain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(dErrors.CodeNotFound, "tenant not found"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "tenant not found", body.Detail)
	})

	t.Run("unknown error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
		rec := httptest.NewRecorder()
		req, ok := DecodeJSON[loginRequest](rec, r)
		require.True(t, ok)
		assert.Equal(t, "a@b.co", req.Email)
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		_, ok := DecodeJSON[loginRequest](rec, r)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("field errors become details", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
		rec := httptest.NewRecorder()
		_, ok := DecodeJSON[loginRequest](rec, r)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, map[string][]string{
			"email":    {"must be a valid email"},
			"password": {"is required"},
		}, body.Details)
	})
}
