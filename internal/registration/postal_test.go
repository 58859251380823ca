package registration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/transport/apiclient"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/circuit"
)

type postalDoer struct {
	calls int
	resp  *apiclient.Response
	err   error
	paths []string
}

func (d *postalDoer) Do(_ context.Context, req apiclient.Request) (*apiclient.Response, error) {
	d.calls++
	d.paths = append(d.paths, req.Path)
	return d.resp, d.err
}

func TestPostalLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the address", func(t *testing.T) {
		d := &postalDoer{resp: &apiclient.Response{StatusCode: http.StatusOK,
			Body: []byte(`{"cep":"01001-000","logradouro":"Praça da Sé","bairro":"Sé","localidade":"São Paulo","uf":"SP"}`)}}
		p := NewPostalLookup(d, "https://cep.test/")

		addr, err := p.Lookup(ctx, "01001-000")
		require.NoError(t, err)
		assert.Equal(t, "São Paulo", addr.City)
		assert.Equal(t, []string{"https://cep.test/ws/01001000/json/"}, d.paths)
	})

	t.Run("unknown code", func(t *testing.T) {
		d := &postalDoer{resp: &apiclient.Response{StatusCode: http.StatusOK, Body: []byte(`{"erro":true}`)}}
		_, err := NewPostalLookup(d, "").Lookup(ctx, "99999999")
		assert.ErrorIs(t, err, ErrPostalCodeNotFound)
		assert.Equal(t, "https://viacep.com.br/ws/99999999/json/", d.paths[0])
	})

	t.Run("unknown code reported as string", func(t *testing.T) {
		d := &postalDoer{resp: &apiclient.Response{StatusCode: http.StatusOK, Body: []byte(`{"erro": "true"}`)}}
		p := NewPostalLookup(d, "", circuit.WithFailureThreshold(1))

		_, err := p.Lookup(ctx, "99999999")
		assert.ErrorIs(t, err, ErrPostalCodeNotFound)
		assert.Equal(t, circuit.StateClosed, p.Breaker().State())
	})

	t.Run("false flag decodes the address", func(t *testing.T) {
		d := &postalDoer{resp: &apiclient.Response{StatusCode: http.StatusOK,
			Body: []byte(`{"cep":"01001-000","localidade":"São Paulo","erro":"false"}`)}}
		addr, err := NewPostalLookup(d, "").Lookup(ctx, "01001000")
		require.NoError(t, err)
		assert.Equal(t, "São Paulo", addr.City)
	})

	t.Run("malformed code is not sent", func(t *testing.T) {
		d := &postalDoer{}
		_, err := NewPostalLookup(d, "").Lookup(ctx, "123")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Zero(t, d.calls)
	})

	t.Run("repeated outages open the circuit", func(t *testing.T) {
		d := &postalDoer{err: errors.New("connection refused")}
		p := NewPostalLookup(d, "", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))

		for range 2 {
			_, err := p.Lookup(ctx, "01001000")
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		}
		_, err := p.Lookup(ctx, "01001000")
		assert.ErrorIs(t, err, ErrPostalUnavailable)
		assert.Equal(t, 2, d.calls)
		assert.Equal(t, circuit.StateOpen, p.Breaker().State())
	})

	t.Run("client errors do not trip the circuit", func(t *testing.T) {
		failure := apiclient.Classification{Status: http.StatusBadRequest, Message: "bad"}
		d := &postalDoer{resp: &apiclient.Response{StatusCode: http.StatusBadRequest, Failure: &failure}}
		p := NewPostalLookup(d, "", circuit.WithFailureThreshold(1))

		_, err := p.Lookup(ctx, "01001000")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeHandled))
		assert.Equal(t, circuit.StateClosed, p.Breaker().State())
	})
}

func TestFill(t *testing.T) {
	addr := PostalAddress{PostalCode: "01001000", Street: "Praça da Sé", District: "Sé", City: "São Paulo", State: "SP"}
	dst := Address{Street: "Rua Própria", Number: "10"}
	addr.Fill(&dst)

	assert.Equal(t, "01001-000", dst.PostalCode)
	assert.Equal(t, "Rua Própria", dst.Street)
	assert.Equal(t, "Sé", dst.District)
	assert.Equal(t, "Brasil", dst.Country)
	assert.Equal(t, "10", dst.Number)
}
