package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"meridian/internal/credentials"
	"meridian/internal/credentials/storage"
	"meridian/internal/notify"
	"meridian/internal/tenant/resolver"
	"meridian/internal/transport/apiclient"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/testutil"
	"meridian/pkg/testutil/backend"
)

const (
	adminEmail    = "ana@acme.io"
	adminPassword = "s3cretpass"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *backend.Backend
	storage  *storage.Memory
	store    *credentials.Store
	queue    *notify.Queue
	resolver *resolver.Resolver
	api      *apiclient.Client
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = backend.New()
	s.backend.AddTenant(*testutil.NewTenantBuilder().Build())
	s.backend.AddUser(adminEmail, adminPassword, *testutil.NewUserBuilder().WithID("7").WithNickname("ana").Build(), "acme")

	s.storage = storage.NewMemory()
	s.store = credentials.New(s.storage)
	s.queue = notify.New()

	r, err := resolver.New(resolver.Config{Source: resolver.SourceHost, RootDomain: "app.test"}, s.store)
	s.Require().NoError(err)
	s.resolver = r

	api, err := apiclient.New(apiclient.Config{Scheme: "https", APIHost: "api.test"}, s.store,
		apiclient.WithHTTPClient(s.backend.Doer()),
		apiclient.WithNotifier(s.queue),
		apiclient.WithTenantLocator(s.resolver),
	)
	s.Require().NoError(err)
	s.api = api
	s.service = New(s.store, s.resolver, s.api, s.queue)

	s.Require().NoError(s.service.Boot(s.ctx, "https://acme.app.test/login"))
}

func (s *ServiceSuite) TestBootResolvesTenant() {
	s.Equal("acme", s.store.TenantID())
	slug, _ := s.resolver.Current()
	s.Equal("acme", slug)
	s.False(s.store.Authenticated())
}

func (s *ServiceSuite) TestLogin() {
	data, err := s.service.Login(s.ctx, adminEmail, adminPassword)
	s.Require().NoError(err)
	s.Equal("7", data.User.ID)

	snap := s.store.Snapshot()
	s.Equal(data.Access, snap.Token)
	s.Equal("acme", snap.TenantID)
	s.Equal("Acme", snap.Tenant.Name)
	s.Equal("ana", snap.User.Nickname)
	s.False(snap.ExpiresAt.IsZero())

	pending := s.queue.Pending()
	s.Require().Len(pending, 1)
	s.Equal("Welcome, ana.", pending[0].Text)
}

func (s *ServiceSuite) TestLoginRejected() {
	_, err := s.service.Login(s.ctx, adminEmail, "wrong-password")
	s.True(dErrors.HasCode(err, dErrors.CodeHandled))
	s.False(s.store.Authenticated())

	pending := s.queue.Pending()
	s.Require().Len(pending, 1)
	s.Equal("Invalid email or password.", pending[0].Text)
}

func (s *ServiceSuite) TestLoginValidatesInput() {
	_, err := s.service.Login(s.ctx, "not-an-email", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Zero(s.backend.CountRequests(LoginPath))
}

func (s *ServiceSuite) TestLoginIncompletePayload() {
	s.backend.Fail(LoginPath, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"access": "tok", "user": map[string]string{"id": "7"}},
	})

	_, err := s.service.Login(s.ctx, adminEmail, adminPassword)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.False(s.store.Authenticated())
}

func (s *ServiceSuite) TestLoginUnsuccessfulEnvelope() {
	s.backend.Fail(LoginPath, http.StatusOK, map[string]any{"success": false, "message": "Account disabled"})

	_, err := s.service.Login(s.ctx, adminEmail, adminPassword)
	s.Require().Error(err)
	s.Equal("Account disabled", err.Error())
	s.Equal(1, s.queue.Len())
}

func (s *ServiceSuite) TestGoogleLogin() {
	s.backend.AddGoogleCode("g-code", adminEmail)

	data, err := s.service.GoogleLogin(s.ctx, "g-code")
	s.Require().NoError(err)
	s.Equal(adminEmail, data.User.Email)
	s.True(s.store.Authenticated())

	_, err = s.service.GoogleLogin(s.ctx, "unknown")
	s.Error(err)
}

func (s *ServiceSuite) TestPasswordReset() {
	s.Require().NoError(s.service.RequestPasswordReset(s.ctx, adminEmail))
	s.Equal([]string{adminEmail}, s.backend.ResetRequests())

	err := s.service.ConfirmPasswordReset(s.ctx, backend.ResetParams(adminEmail), "brand-new-pass")
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, adminEmail, "brand-new-pass")
	s.NoError(err)

	err = s.service.ConfirmPasswordReset(s.ctx, backend.ResetParams(adminEmail), "another-pass")
	s.True(dErrors.HasCode(err, dErrors.CodeHandled))

	err = s.service.ConfirmPasswordReset(s.ctx, "x", "short")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestMeRequiresSession() {
	_, err := s.service.Me(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLoginCallLogoutScenario() {
	_, err := s.service.Login(s.ctx, adminEmail, adminPassword)
	s.Require().NoError(err)

	user, err := s.service.Me(s.ctx)
	s.Require().NoError(err)
	s.Equal("7", user.ID)

	rec, ok := s.backend.LastRequest(MePath)
	s.Require().True(ok)
	s.Equal("acme.api.test", rec.Host)
	s.Len(rec.Header.Values(apiclient.HeaderAuthorization), 1)
	s.Equal("Bearer "+s.store.Token(), rec.Header.Get(apiclient.HeaderAuthorization))
	s.Equal("acme", rec.Header.Get(apiclient.HeaderTenant))

	s.Require().NoError(s.service.Logout(s.ctx))
	for _, key := range credentials.AllKeys {
		_, err := s.storage.Get(s.ctx, key)
		s.Error(err, key)
	}

	resp, err := s.api.Do(s.ctx, apiclient.Request{Path: MePath})
	s.Require().NoError(err)
	s.Require().NotNil(resp.Failure)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	rec, ok = s.backend.LastRequest(MePath)
	s.Require().True(ok)
	s.Equal("acme.api.test", rec.Host)
	s.Empty(rec.Header.Values(apiclient.HeaderAuthorization))
	s.Empty(rec.Header.Values(apiclient.HeaderTenant))

	_, err = s.api.Do(s.ctx, apiclient.Request{Path: "/api/v1/tenants/acme/public-settings/"})
	s.Require().NoError(err)
	rec, ok = s.backend.LastRequest("/api/v1/tenants/acme/public-settings/")
	s.Require().True(ok)
	s.Equal("api.test", rec.Host)
}

func (s *ServiceSuite) TestNavigate() {
	slug, err := s.service.Navigate(s.ctx, "globex.app.test")
	s.Require().NoError(err)
	s.Equal("globex", slug)
	s.Equal("globex", s.store.TenantID())

	slug, err = s.service.Navigate(s.ctx, "app.test")
	s.Require().NoError(err)
	s.Empty(slug)
	s.Equal("globex", s.store.TenantID())
}
