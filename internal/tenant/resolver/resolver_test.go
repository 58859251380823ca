package resolver

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"meridian/internal/credentials"
	"meridian/internal/credentials/storage"
	"meridian/internal/platform/metrics"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseHost(t *testing.T) {
	r, err := New(Config{Source: SourceHost, RootDomain: "example.com"}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		raw    string
		slug   string
		wantOK bool
	}{
		{"subdomain", "https://acme.example.com/login", "acme", true},
		{"upper case label", "https://ACME.example.com", "acme", true},
		{"nested subdomain takes first label", "https://acme.eu.example.com", "acme", true},
		{"port ignored", "http://acme.example.com:8080", "acme", true},
		{"bare root domain", "https://example.com", "", false},
		{"other domain", "https://acme.other.org", "", false},
		{"localhost", "http://localhost:3000", "", false},
		{"ip literal", "http://127.0.0.1:8000", "", false},
		{"invalid label", "https://ac-me.example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slug, ok := r.Parse(mustURL(t, tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.slug, slug)
		})
	}
}

func TestParseHostWithoutRootDomain(t *testing.T) {
	r, err := New(Config{Source: SourceHost}, nil)
	require.NoError(t, err)

	slug, ok := r.Parse(mustURL(t, "https://acme.example.com"))
	assert.True(t, ok)
	assert.Equal(t, "acme", slug)

	_, ok = r.Parse(mustURL(t, "https://example.com"))
	assert.False(t, ok)
}

func TestParsePath(t *testing.T) {
	r, err := New(Config{Source: SourcePath}, nil)
	require.NoError(t, err)

	slug, ok := r.Parse(mustURL(t, "https://app.example.com//Globex/dashboard"))
	assert.True(t, ok)
	assert.Equal(t, "globex", slug)

	_, ok = r.Parse(mustURL(t, "https://app.example.com/"))
	assert.False(t, ok)
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation(" acme.app.test/login ")
	require.NoError(t, err)
	assert.Equal(t, "https", loc.Scheme)
	assert.Equal(t, "acme.app.test", loc.Host)
	assert.Equal(t, "/login", loc.Path)

	loc, err = ParseLocation("http://localhost:3000/t/acme")
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", loc.Host)

	_, err = ParseLocation("  ")
	assert.Error(t, err)
}

func TestMappingWins(t *testing.T) {
	r, err := New(Config{
		Source:     SourceHost,
		RootDomain: "example.com",
		Mapping:    map[string]string{"acme.example.com": "initech", "portal.test:8443": "globex"},
	}, nil)
	require.NoError(t, err)

	slug, ok := r.Parse(mustURL(t, "https://acme.example.com"))
	assert.True(t, ok)
	assert.Equal(t, "initech", slug)

	slug, ok = r.Parse(mustURL(t, "https://portal.test:8443/x"))
	assert.True(t, ok)
	assert.Equal(t, "globex", slug)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Source: "cookie"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Source: SourceMapping}, nil)
	assert.Error(t, err)

	_, err = New(Config{Source: SourceHost, Mapping: map[string]string{"a.test": "Not Valid"}}, nil)
	assert.Error(t, err)
}

type failingSlot struct{}

func (failingSlot) TenantID() string { return "" }
func (failingSlot) SetTenantID(context.Context, string) error {
	return errors.New("disk full")
}

type ResolveSuite struct {
	suite.Suite
	ctx      context.Context
	storage  *storage.Memory
	store    *credentials.Store
	metrics  *metrics.Metrics
	resolver *Resolver
}

func TestResolveSuite(t *testing.T) {
	suite.Run(t, new(ResolveSuite))
}

func (s *ResolveSuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = storage.NewMemory()
	s.store = credentials.New(s.storage)
	s.Require().NoError(s.store.Init(s.ctx))
	s.metrics = metrics.New(prometheus.NewRegistry())

	r, err := New(Config{Source: SourceHost, RootDomain: "example.com"}, s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.resolver = r
}

func (s *ResolveSuite) TestPersistsNewTenant() {
	slug, ok, err := s.resolver.ResolveString(s.ctx, "https://acme.example.com/login")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("acme", slug)

	s.Equal("acme", s.store.TenantID())
	stored, err := s.storage.Get(s.ctx, credentials.KeyTenantID)
	s.Require().NoError(err)
	s.Equal("acme", stored)

	current, host := s.resolver.Current()
	s.Equal("acme", current)
	s.Equal("acme.example.com", host)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TenantChanges))
}

func (s *ResolveSuite) TestSameTenantDoesNotCountAsChange() {
	_, _, err := s.resolver.ResolveString(s.ctx, "acme.example.com")
	s.Require().NoError(err)
	_, _, err = s.resolver.ResolveString(s.ctx, "acme.example.com/other")
	s.Require().NoError(err)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.TenantChanges))
}

func (s *ResolveSuite) TestUnresolvableKeepsPreviousTenant() {
	_, _, err := s.resolver.ResolveString(s.ctx, "acme.example.com")
	s.Require().NoError(err)

	slug, ok, err := s.resolver.ResolveString(s.ctx, "example.com")
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(slug)

	s.Equal("acme", s.store.TenantID())
	current, host := s.resolver.Current()
	s.Equal("acme", current)
	s.Equal("example.com", host)
}

func (s *ResolveSuite) TestPersistFailureIsReturned() {
	r, err := New(Config{Source: SourceHost, RootDomain: "example.com"}, failingSlot{})
	s.Require().NoError(err)

	slug, ok, err := r.ResolveString(s.ctx, "acme.example.com")
	s.Error(err)
	s.True(ok)
	s.Equal("acme", slug)
}

func (s *ResolveSuite) TestEmptyLocation() {
	_, _, err := s.resolver.ResolveString(s.ctx, "  ")
	s.Error(err)
}
