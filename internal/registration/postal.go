package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"meridian/internal/transport/apiclient"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/circuit"
	s "meridian/pkg/string"
)

// DefaultPostalBaseURL is the public ViaCEP service.
const DefaultPostalBaseURL = "https://viacep.com.br"

var (
	// ErrPostalCodeNotFound is returned for well-formed codes the service does not know.
	ErrPostalCodeNotFound = dErrors.New(dErrors.CodeNotFound, "postal code not found")
	// ErrPostalUnavailable is returned while the lookup circuit is open.
	ErrPostalUnavailable = dErrors.New(dErrors.CodeUnavailable, "postal code service unavailable")
)

// PostalAddress is a ViaCEP lookup result.
type PostalAddress struct {
	PostalCode string `json:"cep"`
	Street     string `json:"logradouro"`
	Complement string `json:"complemento"`
	District   string `json:"bairro"`
	City       string `json:"localidade"`
	State      string `json:"uf"`
	NotFound   flag   `json:"erro"`
}

// flag decodes a boolean sent either as a JSON bool or as a string.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flag(t)
	case string:
		*f = flag(strings.EqualFold(strings.TrimSpace(t), "true"))
	case nil:
		*f = false
	default:
		return fmt.Errorf("erro: unexpected value %s", b)
	}
	return nil
}

// Doer sends requests through the pipeline.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// PostalLookup resolves Brazilian postal codes (CEP). Repeated service
// failures open a circuit and lookups fail fast until it recovers.
type PostalLookup struct {
	api     Doer
	baseURL string
	breaker *circuit.Breaker
}

func NewPostalLookup(api Doer, baseURL string, opts ...circuit.Option) *PostalLookup {
	if baseURL == "" {
		baseURL = DefaultPostalBaseURL
	}
	return &PostalLookup{
		api:     api,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: circuit.New("postal_code", opts...),
	}
}

// Breaker exposes the lookup circuit.
func (p *PostalLookup) Breaker() *circuit.Breaker {
	return p.breaker
}

// Lookup fetches the address of cep, which may be masked.
func (p *PostalLookup) Lookup(ctx context.Context, cep string) (*PostalAddress, error) {
	digits := s.Digits(cep)
	if len(digits) != 8 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "postal code must have 8 digits")
	}

	if !p.breaker.Allow() {
		return nil, ErrPostalUnavailable
	}
	resp, err := p.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s/ws/%s/json/", p.baseURL, digits),
	})
	if err != nil {
		if ctx.Err() == nil {
			p.breaker.RecordFailure()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "postal code service unavailable")
	}
	if resp.Failure != nil {
		if resp.Failure.Status >= http.StatusInternalServerError {
			p.breaker.RecordFailure()
		}
		return nil, dErrors.Wrap(&apiclient.HandledError{Classification: *resp.Failure}, dErrors.CodeHandled, resp.Failure.Message)
	}

	var addr PostalAddress
	if err := json.Unmarshal(resp.Body, &addr); err != nil {
		p.breaker.RecordFailure()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "unreadable postal code response")
	}
	p.breaker.RecordSuccess()
	if addr.NotFound {
		return nil, ErrPostalCodeNotFound
	}
	return &addr, nil
}

// Fill copies the looked-up fields into blank address fields.
func (a *PostalAddress) Fill(dst *Address) {
	if a.PostalCode != "" {
		dst.PostalCode = FormatPostalCode(a.PostalCode)
	}
	setIfBlank(&dst.Street, a.Street)
	setIfBlank(&dst.Complement, a.Complement)
	setIfBlank(&dst.District, a.District)
	setIfBlank(&dst.City, a.City)
	setIfBlank(&dst.State, a.State)
	setIfBlank(&dst.Country, "Brasil")
}

func setIfBlank(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = v
	}
}
