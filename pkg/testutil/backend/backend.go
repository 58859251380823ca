// Package backend is an in-process fake of the tenant REST API and the
// postal-code service. Doer serves requests straight through the router, so
// tenant subdomains need no DNS.
package backend

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	authmodels "meridian/internal/auth/models"
	tenantmodels "meridian/internal/tenant/models"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/httputil"
	"meridian/pkg/secrets"
	"meridian/pkg/testutil"
)

// TokenTTL is the lifetime of issued access tokens.
const TokenTTL = time.Hour

// Recorded is one request as the backend saw it.
type Recorded struct {
	Method string
	Host   string
	Path   string
	Header http.Header
}

// Registration is one company self-registration.
type Registration struct {
	Values url.Values
	Files  map[string]string
}

// Address is a postal-code lookup result in ViaCEP's shape.
type Address struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
}

type account struct {
	passwordHash string
	user         authmodels.User
	tenant       string
}

type failure struct {
	status int
	body   any
}

type Backend struct {
	router chi.Router
	hasher *secrets.Hasher

	mu            sync.Mutex
	tenants       map[string]tenantmodels.Tenant
	accounts      map[string]*account
	googleCodes   map[string]string
	resetParams   map[string]string
	addresses     map[string]Address
	failures      map[string]failure
	requests      []Recorded
	registrations []Registration
	resetRequests []string
}

func New() *Backend {
	b := &Backend{
		hasher:      secrets.NewHasher(bcrypt.MinCost),
		tenants:     make(map[string]tenantmodels.Tenant),
		accounts:    make(map[string]*account),
		googleCodes: make(map[string]string),
		resetParams: make(map[string]string),
		addresses:   make(map[string]Address),
		failures:    make(map[string]failure),
	}
	r := chi.NewRouter()
	r.Use(b.record, b.injectFailures)
	r.Post("/api/v1/auth/login/", b.handleLogin)
	r.Post("/api/v1/auth/social/google/", b.handleGoogleLogin)
	r.Post("/api/v1/auth/password/reset/", b.handleResetRequest)
	r.Post("/api/v1/auth/password/reset/confirm/", b.handleResetConfirm)
	r.Get("/api/v1/users/me/", b.handleMe)
	r.Get("/api/v1/tenants/{slug}/public-settings/", b.handlePublicSettings)
	r.Post("/api/register-company/", b.handleRegister)
	r.Get("/ws/{cep}/json/", b.handlePostalCode)
	r.Get("/status/{code}", b.handleStatus)
	b.router = r
	return b
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (b *Backend) Handler() http.Handler {
	return b.router
}

// Doer returns an HTTP client that serves requests in-process.
func (b *Backend) Doer() *Doer {
	return &Doer{handler: b.router}
}

// Doer implements the request pipeline's HTTPDoer over a handler.
type Doer struct {
	handler http.Handler
}

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// AddTenant registers branding served by the public-settings endpoint.
func (b *Backend) AddTenant(t tenantmodels.Tenant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tenants[t.Slug()] = t
}

// AddUser creates an account that can sign in on tenant's host.
func (b *Backend) AddUser(email, password string, user authmodels.User, tenant string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user.Email = email
	b.accounts[strings.ToLower(email)] = &account{passwordHash: b.mustHash(password), user: user, tenant: tenant}
}

// mustHash stores passwords the way a real backend would. Empty passwords
// hash to a value nothing verifies against.
func (b *Backend) mustHash(password string) string {
	hash, err := b.hasher.Hash(password)
	if err != nil {
		return ""
	}
	return hash
}

// AddGoogleCode maps an authorization code to an existing account.
func (b *Backend) AddGoogleCode(code, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.googleCodes[code] = strings.ToLower(email)
}

// AddAddress makes cep resolvable by the postal-code endpoint.
func (b *Backend) AddAddress(cep string, addr Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[cep] = addr
}

// Fail makes every request to path answer status with body until cleared.
func (b *Backend) Fail(path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = failure{status: status, body: body}
}

// ClearFailures removes every injected failure.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

func (b *Backend) Requests() []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Recorded(nil), b.requests...)
}

// LastRequest returns the latest request to path.
func (b *Backend) LastRequest(path string) (Recorded, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Path == path {
			return b.requests[i], true
		}
	}
	return Recorded{}, false
}

// CountRequests counts requests to path.
func (b *Backend) CountRequests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) Registrations() []Registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Registration(nil), b.registrations...)
}

// ResetRequests lists emails that asked for a password reset.
func (b *Backend) ResetRequests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resetRequests...)
}

// ResetParams returns the params a reset link for email would carry.
func ResetParams(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.ToLower(email)))
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Recorded{
			Method: r.Method,
			Host:   r.Host,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		f, ok := b.failures[r.URL.Path]
		b.mu.Unlock()
		if ok {
			httputil.WriteJSON(w, f.status, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tenantFromHost returns the first label of a subdomain host.
func tenantFromHost(host string) string {
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	label, rest, ok := strings.Cut(host, ".")
	if !ok || !strings.Contains(rest, ".") {
		return ""
	}
	return label
}

func (b *Backend) issue(acc *account) authmodels.LoginData {
	t := b.tenants[acc.tenant]
	if t.ID == "" {
		t = tenantmodels.Tenant{ID: acc.tenant, Schema: acc.tenant, Name: acc.tenant}
	}
	user := acc.user
	return authmodels.LoginData{
		Access:  testutil.Token(acc.user.ID, TokenTTL),
		Refresh: testutil.Token(acc.user.ID, 24*TokenTTL),
		User:    &user,
		Tenant:  &t,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[authmodels.LoginRequest](w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[strings.ToLower(req.Email)]
	if acc == nil || b.hasher.Verify(req.Password, acc.passwordHash) != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credentials"))
		return
	}
	if slug := tenantFromHost(r.Host); slug != "" && slug != acc.tenant {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credentials"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope{Success: true, Message: "Login successful", Data: b.issue(acc)})
}

func (b *Backend) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[authmodels.GoogleLoginRequest](w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[b.googleCodes[req.Code]]
	if acc == nil {
		httputil.WriteJSON(w, http.StatusOK, envelope{Success: false, Message: "Google account not linked"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope{Success: true, Data: b.issue(acc)})
}

func (b *Backend) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[authmodels.PasswordResetRequest](w, r)
	if !ok {
		return
	}
	email := strings.ToLower(req.Email)
	b.mu.Lock()
	b.resetRequests = append(b.resetRequests, email)
	if _, exists := b.accounts[email]; exists {
		b.resetParams[ResetParams(email)] = email
	}
	b.mu.Unlock()
	httputil.WriteJSON(w, http.StatusOK, envelope{Success: true, Message: "If the email exists, a reset link was sent."})
}

func (b *Backend) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[authmodels.PasswordResetConfirm](w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email, found := b.resetParams[req.Params]
	if !found {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "reset link is invalid or expired"))
		return
	}
	delete(b.resetParams, req.Params)
	b.accounts[email].passwordHash = b.mustHash(req.NewPassword)
	httputil.WriteJSON(w, http.StatusOK, envelope{Success: true, Message: "Password updated."})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return testutil.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token is invalid or expired"))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if acc.user.ID == claims.Subject {
			if r.Header.Get("X-Tenant-Id") != acc.tenant {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "tenant mismatch"))
				return
			}
			httputil.WriteJSON(w, http.StatusOK, envelope{Success: true, Data: acc.user})
			return
		}
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unknown user"))
}

func (b *Backend) handlePublicSettings(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	b.mu.Lock()
	t, ok := b.tenants[slug]
	b.mu.Unlock()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "tenant not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, envelope{Success: true, Data: t})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form"))
		return
	}
	slug := r.MultipartForm.Value["schema_name"]
	if len(slug) != 1 || !tenantmodels.ValidSlug(slug[0]) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "schema_name is invalid"))
		return
	}

	files := make(map[string]string)
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable file"))
				return
			}
			_, _ = io.Copy(io.Discard, f)
			_ = f.Close()
			files[field] = fh.Filename
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.tenants[slug[0]]; taken {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidState, "schema_name is already taken"))
		return
	}
	values := url.Values(r.MultipartForm.Value)
	b.registrations = append(b.registrations, Registration{Values: values, Files: files})
	b.tenants[slug[0]] = tenantmodels.Tenant{ID: slug[0], Schema: slug[0], Name: values.Get("company_name")}
	if email := values.Get("email"); email != "" {
		b.accounts[strings.ToLower(email)] = &account{
			passwordHash: b.mustHash(values.Get("password")),
			user: authmodels.User{
				ID:       fmt.Sprintf("u-%d", len(b.accounts)+1),
				Email:    email,
				Nickname: values.Get("nickname"),
			},
			tenant: slug[0],
		}
	}
	httputil.WriteJSON(w, http.StatusCreated, envelope{Success: true, Message: "Company registered."})
}

func (b *Backend) handlePostalCode(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	addr, ok := b.addresses[chi.URLParam(r, "cep")]
	b.mu.Unlock()
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"erro": true})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, addr)
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 599 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid status"))
		return
	}
	httputil.WriteJSON(w, code, httputil.ErrorBody{Message: http.StatusText(code)})
}
