// Package service is the auth and tenant context of the client: it boots the
// credential store, signs users in and out, and re-resolves the tenant when
// the location changes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"meridian/internal/auth/models"
	"meridian/internal/credentials"
	"meridian/internal/notify"
	"meridian/internal/platform/logger"
	"meridian/internal/platform/privacy"
	tenant "meridian/internal/tenant/models"
	"meridian/internal/transport/apiclient"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/validation"
)

// Backend paths.
const (
	LoginPath                = "/api/v1/auth/login/"
	GoogleLoginPath          = "/api/v1/auth/social/google/"
	PasswordResetPath        = "/api/v1/auth/password/reset/"
	PasswordResetConfirmPath = "/api/v1/auth/password/reset/confirm/"
	MePath                   = "/api/v1/users/me/"
)

// Credentials is the credential store as the auth context uses it.
type Credentials interface {
	Init(ctx context.Context) error
	SetCredentials(ctx context.Context, token string, t *tenant.Tenant, u *models.User) error
	Clear(ctx context.Context) error
	Snapshot() credentials.Snapshot
}

// TenantResolver maps a location to the active tenant.
type TenantResolver interface {
	ResolveString(ctx context.Context, raw string) (string, bool, error)
}

// API is the slice of the request pipeline the service needs.
type API interface {
	JSON(ctx context.Context, method, path string, in, out any) error
}

type Notifier interface {
	Enqueue(msg notify.Message) string
}

type Service struct {
	creds    Credentials
	resolver TenantResolver
	api      API
	notifier Notifier
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(creds Credentials, resolver TenantResolver, api API, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		creds:    creds,
		resolver: resolver,
		api:      api,
		notifier: notifier,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Boot loads persisted credentials, then resolves the tenant from location
// when one is given.
func (s *Service) Boot(ctx context.Context, location string) error {
	if err := s.creds.Init(ctx); err != nil {
		return fmt.Errorf("init credentials: %w", err)
	}
	if location == "" {
		return nil
	}
	_, err := s.Navigate(ctx, location)
	return err
}

// Navigate re-runs tenant resolution for a new location.
func (s *Service) Navigate(ctx context.Context, location string) (string, error) {
	slug, ok, err := s.resolver.ResolveString(ctx, location)
	if err != nil {
		return "", err
	}
	if !ok {
		s.logger.DebugContext(ctx, "location has no tenant", "location", location)
	}
	return slug, nil
}

// Login signs in with email and password on the current tenant.
func (s *Service) Login(ctx context.Context, email, password string) (*models.LoginData, error) {
	req := models.LoginRequest{Email: email, Password: password}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	data, err := s.signIn(ctx, LoginPath, req)
	if err != nil {
		s.logger.WarnContext(ctx, "password sign-in failed", "email", privacy.MaskEmail(email), "error", err)
	}
	return data, err
}

// GoogleLogin exchanges a Google authorization code for a session.
func (s *Service) GoogleLogin(ctx context.Context, code string) (*models.LoginData, error) {
	req := models.GoogleLoginRequest{Code: code}
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	return s.signIn(ctx, GoogleLoginPath, req)
}

func (s *Service) signIn(ctx context.Context, path string, req any) (*models.LoginData, error) {
	var env apiclient.Envelope[*models.LoginData]
	if err := s.api.JSON(ctx, http.MethodPost, path, req, &env); err != nil {
		return nil, err
	}
	if err := env.Check("Login failed. Please try again."); err != nil {
		s.notifier.Enqueue(notify.Message{Type: notify.TypeError, Title: "Login failed", Text: err.Error()})
		return nil, err
	}
	data := env.Data
	if !data.Complete() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "login response is missing the token, user or tenant")
	}

	if err := s.creds.SetCredentials(ctx, data.Access, data.Tenant, data.User); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credentials")
	}
	s.notifier.Enqueue(notify.Message{
		Type:  notify.TypeSuccess,
		Title: "Signed in",
		Text:  fmt.Sprintf("Welcome, %s.", data.User.DisplayName()),
	})
	s.logger.InfoContext(ctx, "signed in",
		"tenant", data.Tenant.Slug(),
		"user_id", data.User.ID,
		"token", privacy.MaskToken(data.Access),
	)
	return data, nil
}

// Logout forgets every credential. Tenant routing by location is unaffected.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.creds.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear credentials")
	}
	s.logger.InfoContext(ctx, "signed out")
	return nil
}

// Me fetches the signed-in user from the backend.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	if !s.creds.Snapshot().Authenticated() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not signed in")
	}
	var env apiclient.Envelope[*models.User]
	if err := s.api.JSON(ctx, http.MethodGet, MePath, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, dErrors.New(dErrors.CodeInvalidState, "empty user payload")
	}
	return env.Data, nil
}

// RequestPasswordReset asks the backend to mail a reset link.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	req := models.PasswordResetRequest{Email: email}
	if err := validation.Validate(req); err != nil {
		return err
	}
	if err := s.api.JSON(ctx, http.MethodPost, PasswordResetPath, req, nil); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset requested", "email", privacy.MaskEmail(email))
	s.notifier.Enqueue(notify.Message{
		Type:  notify.TypeInfo,
		Title: "Check your email",
		Text:  "If the address is registered, a reset link is on its way.",
	})
	return nil
}

// ConfirmPasswordReset sets a new password using the params of a reset link.
func (s *Service) ConfirmPasswordReset(ctx context.Context, params, newPassword string) error {
	req := models.PasswordResetConfirm{Params: params, NewPassword: newPassword}
	if err := validation.Validate(req); err != nil {
		return err
	}
	if err := s.api.JSON(ctx, http.MethodPost, PasswordResetConfirmPath, req, nil); err != nil {
		return err
	}
	s.notifier.Enqueue(notify.Message{
		Type:  notify.TypeSuccess,
		Title: "Password updated",
		Text:  "You can now sign in with the new password.",
	})
	return nil
}
