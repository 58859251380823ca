// Package credentials holds the bearer token, tenant and user of the running
// client. It is the only reader of durable credential storage: the request
// pipeline and the auth context go through Store, never through storage keys.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authmodels "meridian/internal/auth/models"
	"meridian/internal/credentials/storage"
	"meridian/internal/platform/logger"
	"meridian/internal/sentinel"
	tenant "meridian/internal/tenant/models"
)

// Durable storage keys.
const (
	KeyToken    = "authToken"
	KeyTenantID = "tenantId"
	KeyUser     = "userData"
	KeyTenant   = "tenant"
)

// AllKeys lists every key the store owns.
var AllKeys = []string{KeyToken, KeyTenantID, KeyUser, KeyTenant}

// Snapshot is a consistent copy of the in-memory credentials.
type Snapshot struct {
	Token     string
	TenantID  string
	Tenant    *tenant.Tenant
	User      *authmodels.User
	ExpiresAt time.Time
}

// Authenticated reports whether a bearer token is held.
func (s Snapshot) Authenticated() bool {
	return s.Token != ""
}

// Store mirrors durable storage in memory. Every mutation writes storage first
// and only then updates memory, under one lock, so readers never observe a
// state that storage does not hold.
type Store struct {
	mu      sync.RWMutex
	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time

	state Snapshot
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  logger.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads credentials from durable storage. Absent keys leave the store
// unauthenticated. Corrupt JSON clears every key. An expired JWT is dropped.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]string, len(AllKeys))
	for _, key := range AllKeys {
		v, err := s.storage.Get(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		values[key] = v
	}

	next := Snapshot{
		Token:    values[KeyToken],
		TenantID: values[KeyTenantID],
	}
	if raw, ok := values[KeyUser]; ok {
		var u authmodels.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return s.resetCorrupt(ctx, KeyUser, err)
		}
		next.User = &u
	}
	if raw, ok := values[KeyTenant]; ok {
		var t tenant.Tenant
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return s.resetCorrupt(ctx, KeyTenant, err)
		}
		next.Tenant = &t
	}

	if next.Token != "" {
		if exp, ok := tokenExpiry(next.Token); ok {
			if !exp.After(s.now()) {
				if err := s.storage.Write(ctx, storage.Batch{Delete: []string{KeyToken}}); err != nil {
					return fmt.Errorf("drop expired token: %w", err)
				}
				s.logger.InfoContext(ctx, "stored token expired", "expired_at", exp)
				next.Token = ""
			} else {
				next.ExpiresAt = exp
			}
		}
	}

	s.state = next
	s.logger.DebugContext(ctx, "credentials loaded",
		"authenticated", next.Authenticated(),
		"tenant", next.TenantID,
	)
	return nil
}

func (s *Store) resetCorrupt(ctx context.Context, key string, cause error) error {
	s.logger.WarnContext(ctx, "stored credentials are corrupt, clearing",
		"key", key,
		"error", cause,
	)
	if err := s.storage.Write(ctx, storage.Batch{Delete: AllKeys}); err != nil {
		return fmt.Errorf("clear corrupt credentials: %w", err)
	}
	s.state = Snapshot{}
	return nil
}

// SetCredentials stores token, tenant and user in one storage batch.
func (s *Store) SetCredentials(ctx context.Context, token string, t *tenant.Tenant, u *authmodels.User) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}

	batch := storage.Batch{Put: map[string]string{KeyToken: token}}
	next := Snapshot{Token: token, User: u, Tenant: t}

	if t != nil {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal tenant: %w", err)
		}
		batch.Put[KeyTenant] = string(payload)
		if slug := t.Slug(); slug != "" {
			batch.Put[KeyTenantID] = slug
			next.TenantID = slug
		}
	}
	if u != nil {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		batch.Put[KeyUser] = string(payload)
	} else {
		batch.Delete = append(batch.Delete, KeyUser)
	}
	if exp, ok := tokenExpiry(token); ok {
		next.ExpiresAt = exp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Write(ctx, batch); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	// A login without tenant data keeps the tenant already resolved from the host.
	if next.TenantID == "" {
		next.TenantID = s.state.TenantID
	}
	if next.Tenant == nil {
		next.Tenant = s.state.Tenant
	}
	s.state = next
	return nil
}

// SetTenantID replaces the tenant identifier sent with tenant-scoped calls.
// An empty id removes it.
func (s *Store) SetTenantID(ctx context.Context, id string) error {
	batch := storage.Batch{Put: map[string]string{KeyTenantID: id}}
	if id == "" {
		batch = storage.Batch{Delete: []string{KeyTenantID}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Write(ctx, batch); err != nil {
		return fmt.Errorf("persist tenant id: %w", err)
	}
	s.state.TenantID = id
	return nil
}

// SetTenant caches tenant branding. A nil tenant removes it.
func (s *Store) SetTenant(ctx context.Context, t *tenant.Tenant) error {
	batch := storage.Batch{Delete: []string{KeyTenant}}
	if t != nil {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal tenant: %w", err)
		}
		batch = storage.Batch{Put: map[string]string{KeyTenant: string(payload)}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Write(ctx, batch); err != nil {
		return fmt.Errorf("persist tenant: %w", err)
	}
	s.state.Tenant = t
	return nil
}

// ClearToken drops the bearer token only. Tenant and user stay.
func (s *Store) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Write(ctx, storage.Batch{Delete: []string{KeyToken}}); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	s.state.Token = ""
	s.state.ExpiresAt = time.Time{}
	return nil
}

// Clear removes every durable key and resets memory to unauthenticated.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Write(ctx, storage.Batch{Delete: AllKeys}); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	s.state = Snapshot{}
	return nil
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

func (s *Store) TenantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.TenantID
}

func (s *Store) Tenant() *tenant.Tenant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Tenant
}

func (s *Store) User() *authmodels.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User
}

// ExpiresAt returns the token expiry, or the zero time for opaque tokens.
func (s *Store) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ExpiresAt
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// tokenExpiry reads the exp claim without verifying the signature; the client
// never holds the signing key. Opaque tokens report ok=false.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
