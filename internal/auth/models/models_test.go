package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/transport/apiclient"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "ana", (&User{Nickname: "ana", FirstName: "Ana", Email: "a@x.io"}).DisplayName())
	assert.Equal(t, "Ana Lima", (&User{FirstName: "Ana", LastName: "Lima", Email: "a@x.io"}).DisplayName())
	assert.Equal(t, "a@x.io", (&User{Email: "a@x.io"}).DisplayName())
	var u *User
	assert.Equal(t, "", u.DisplayName())
}

func TestLoginEnvelope(t *testing.T) {
	t.Run("complete payload", func(t *testing.T) {
		raw := `{"success":true,"data":{"access":"tok","refresh":"ref",
			"user":{"id":"7","email":"admin@acme.io"},
			"tenant":{"id":"acme","name":"Acme"}}}`

		var env apiclient.Envelope[LoginData]
		require.NoError(t, json.Unmarshal([]byte(raw), &env))
		assert.True(t, env.Success)
		assert.True(t, env.Data.Complete())
		assert.Equal(t, "acme", env.Data.Tenant.Slug())
	})

	t.Run("missing tenant is incomplete", func(t *testing.T) {
		d := &LoginData{Access: "tok", User: &User{ID: "7"}}
		assert.False(t, d.Complete())
	})
}
