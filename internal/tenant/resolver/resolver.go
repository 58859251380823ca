// Package resolver derives the active tenant slug from the client location
// and keeps the credential store's tenant slot in step with it.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"

	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
	tenant "meridian/internal/tenant/models"
)

// Source selects where the slug is read from.
type Source string

const (
	SourceHost    Source = "host"
	SourcePath    Source = "path"
	SourceMapping Source = "mapping"
)

// ParseSource validates a configured source name.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceHost, SourcePath, SourceMapping:
		return src, nil
	case "":
		return SourceHost, nil
	default:
		return "", fmt.Errorf("unknown tenant source %q", s)
	}
}

// TenantSlot is the part of the credential store the resolver writes to.
type TenantSlot interface {
	TenantID() string
	SetTenantID(ctx context.Context, id string) error
}

// Config describes how locations map to tenants.
type Config struct {
	Source     Source
	RootDomain string
	// Mapping pins hosts to slugs. Entries win over positional parsing.
	Mapping map[string]string
}

type Resolver struct {
	source     Source
	rootDomain string
	mapping    map[string]string
	slot       TenantSlot

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	current string
	host    string
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New builds a resolver. slot may be nil when nothing should be persisted.
func New(cfg Config, slot TenantSlot, opts ...Option) (*Resolver, error) {
	src, err := ParseSource(string(cfg.Source))
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(cfg.Mapping))
	for host, slug := range cfg.Mapping {
		norm, ok := tenant.NormalizeSlug(slug)
		if !ok {
			return nil, fmt.Errorf("invalid tenant slug %q for host %q", slug, host)
		}
		mapping[strings.ToLower(strings.TrimSpace(host))] = norm
	}
	if src == SourceMapping && len(mapping) == 0 {
		return nil, fmt.Errorf("tenant source %q needs at least one mapping entry", src)
	}

	r := &Resolver{
		source:     src,
		rootDomain: strings.ToLower(strings.Trim(cfg.RootDomain, ".")),
		mapping:    mapping,
		slot:       slot,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Parse returns the slug for loc without side effects.
func (r *Resolver) Parse(loc *url.URL) (string, bool) {
	if loc == nil {
		return "", false
	}
	hostname := strings.ToLower(loc.Hostname())
	if slug, ok := r.mapping[strings.ToLower(loc.Host)]; ok {
		return slug, true
	}
	if slug, ok := r.mapping[hostname]; ok {
		return slug, true
	}

	switch r.source {
	case SourceHost:
		return r.fromHost(hostname)
	case SourcePath:
		return fromPath(loc.Path)
	default:
		return "", false
	}
}

func (r *Resolver) fromHost(hostname string) (string, bool) {
	if hostname == "" || hostname == "localhost" || net.ParseIP(hostname) != nil {
		return "", false
	}
	var label string
	if r.rootDomain != "" {
		prefix, found := strings.CutSuffix(hostname, "."+r.rootDomain)
		if !found || prefix == "" {
			return "", false
		}
		label, _, _ = strings.Cut(prefix, ".")
	} else {
		labels := strings.Split(hostname, ".")
		if len(labels) < 3 {
			return "", false
		}
		label = labels[0]
	}
	return tenant.NormalizeSlug(label)
}

func fromPath(p string) (string, bool) {
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			return tenant.NormalizeSlug(seg)
		}
	}
	return "", false
}

// Resolve records the slug for loc as current and, when it differs from the
// stored tenant id, persists it. An unresolvable location leaves the current
// and stored tenant untouched and is not an error.
func (r *Resolver) Resolve(ctx context.Context, loc *url.URL) (string, bool, error) {
	slug, ok := r.Parse(loc)

	r.mu.Lock()
	if loc != nil {
		r.host = loc.Host
	}
	if ok {
		r.current = slug
	}
	r.mu.Unlock()

	if !ok {
		r.logger.DebugContext(ctx, "tenant not resolvable from location", "source", r.source)
		return "", false, nil
	}
	if r.slot == nil {
		return slug, true, nil
	}

	previous := r.slot.TenantID()
	if previous == slug {
		return slug, true, nil
	}
	if err := r.slot.SetTenantID(ctx, slug); err != nil {
		return slug, true, fmt.Errorf("persist tenant %q: %w", slug, err)
	}
	r.metrics.IncrementTenantChanges()
	r.logger.InfoContext(ctx, "tenant changed",
		"tenant", slug,
		"previous", previous,
		"source", r.source,
	)
	return slug, true, nil
}

// ResolveString parses raw and resolves it.
func (r *Resolver) ResolveString(ctx context.Context, raw string) (string, bool, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return "", false, err
	}
	return r.Resolve(ctx, loc)
}

// Current returns the last resolved slug and the last seen host.
func (r *Resolver) Current() (slug, host string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.host
}

// ParseLocation accepts a full URL or a bare host such as "acme.example.com".
func ParseLocation(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("location is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	loc, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	return loc, nil
}
