// Package service looks up public tenant settings (branding) before sign-in.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"meridian/internal/notify"
	"meridian/internal/platform/logger"
	"meridian/internal/platform/tracer"
	"meridian/internal/tenant/models"
	"meridian/internal/transport/apiclient"
	dErrors "meridian/pkg/domain-errors"
)

// API is the slice of the request pipeline the service needs.
type API interface {
	JSON(ctx context.Context, method, path string, in, out any) error
}

// TenantCache stores the branding of the active tenant.
type TenantCache interface {
	SetTenant(ctx context.Context, t *models.Tenant) error
}

type Notifier interface {
	Enqueue(msg notify.Message) string
}

// Service fetches tenant branding. Concurrent lookups of one slug share a
// single request.
type Service struct {
	api      API
	cache    TenantCache
	notifier Notifier
	group    singleflight.Group

	logger *slog.Logger
	tracer tracer.Tracer
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(api API, cache TenantCache, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		api:      api,
		cache:    cache,
		notifier: notifier,
		logger:   logger.Discard(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SettingsPath is the public branding endpoint of a tenant.
func SettingsPath(slug string) string {
	return fmt.Sprintf("/api/v1/tenants/%s/public-settings/", slug)
}

// PublicSettings loads and caches the branding of slug. Invalid branding is
// reported to the user and returned as an error.
func (s *Service) PublicSettings(ctx context.Context, slug string) (*models.Tenant, error) {
	norm, ok := models.NormalizeSlug(slug)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid tenant slug")
	}

	v, err, shared := s.group.Do(norm, func() (any, error) {
		return s.fetch(ctx, norm)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "tenant settings lookup shared", "tenant", norm)
	}
	t := *v.(*models.Tenant)
	return &t, nil
}

func (s *Service) fetch(ctx context.Context, slug string) (_ *models.Tenant, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanTenantSettings, tracer.String(tracer.AttrTenant, slug))
	defer func() { span.End(err) }()

	var env apiclient.Envelope[*models.Tenant]
	if err := s.api.JSON(ctx, http.MethodGet, SettingsPath(slug), nil, &env); err != nil {
		if dErrors.HasCode(err, dErrors.CodeHandled) {
			return nil, dErrors.Wrap(err, dErrors.CodeHandled, "tenant settings unavailable")
		}
		return nil, fmt.Errorf("load tenant settings: %w", err)
	}

	t := env.Data
	if err := t.ValidateBranding(); err != nil {
		s.notifier.Enqueue(notify.Message{
			Type:  notify.TypeError,
			Title: "Invalid branding",
			Text:  "Invalid company data.",
		})
		s.logger.WarnContext(ctx, "tenant branding rejected", "tenant", slug, "error", err)
		return nil, err
	}
	if t.ID == "" {
		t.ID = slug
	}

	if err := s.cache.SetTenant(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cache tenant")
	}
	s.notifier.Enqueue(notify.Message{
		Type:  notify.TypeSuccess,
		Title: "Company found",
		Text:  fmt.Sprintf("Welcome %s.", t.Name),
	})
	s.logger.InfoContext(ctx, "tenant settings loaded", "tenant", slug)
	return t, nil
}
