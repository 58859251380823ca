// Package apiclient is the request pipeline of the tenant client. Every call
// to the backend goes through Client.Do, which picks the base URL (public or
// tenant-scoped), attaches or scrubs credentials, and turns classified
// failures into notifications.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"meridian/internal/notify"
	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
	"meridian/internal/platform/tracer"
	dErrors "meridian/pkg/domain-errors"
)

// Header names set by the pipeline.
const (
	HeaderAuthorization = "Authorization"
	HeaderTenant        = "X-Tenant-Id"
	HeaderRequestID     = "X-Request-Id"
)

// Route kinds, used for metrics and spans.
const (
	RoutePublic   = "public"
	RouteTenant   = "tenant"
	RouteExternal = "external"
)

// DefaultPublicEndpoints never carry credentials.
var DefaultPublicEndpoints = []string{
	"/register-company",
	"/api/register-company",
	PublicSettingsPath,
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials is the read side of the credential store plus the token reset
// applied on 401.
type Credentials interface {
	Token() string
	TenantID() string
	ClearToken(ctx context.Context) error
}

// TenantLocator reports the tenant slug and host derived from the location.
type TenantLocator interface {
	Current() (slug, host string)
}

// Notifier receives classified failures.
type Notifier interface {
	Enqueue(msg notify.Message) string
}

// Config selects base URLs.
type Config struct {
	Scheme        string
	APIHost       string
	PublicBaseURL string

	DevMode bool
	DevHost string
	DevPort int

	// PublicEndpoints overrides DefaultPublicEndpoints when non-empty.
	PublicEndpoints []string
	Timeout         time.Duration
}

type Client struct {
	cfg       Config
	http      HTTPDoer
	creds     Credentials
	locator   TenantLocator
	notifier  Notifier
	public    []string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

func WithTenantLocator(l TenantLocator) Option {
	return func(c *Client) {
		c.locator = l
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New builds the pipeline. creds is required; every other collaborator has a
// silent default.
func New(cfg Config, creds Credentials, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials are required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.APIHost == "" && !cfg.DevMode {
		return nil, fmt.Errorf("api host is required")
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = cfg.Scheme + "://" + cfg.APIHost
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.DevHost == "" {
		cfg.DevHost = "localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		cfg:      cfg,
		creds:    creds,
		notifier: discardNotifier{},
		public:   DefaultPublicEndpoints,
		logger:   logger.Discard(),
		tracer:   tracer.NewNoop(),
	}
	if len(cfg.PublicEndpoints) > 0 {
		c.public = cfg.PublicEndpoints
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	return c, nil
}

// IsPublic reports whether p is on the public allow-list.
func (c *Client) IsPublic(p string) bool {
	for _, pattern := range c.public {
		if matchPath(pattern, p) {
			return true
		}
	}
	return false
}

// route resolves the target URL and route kind of a request path.
func (c *Client) route(p string) (*url.URL, string, error) {
	if target, err := url.Parse(p); err == nil && target.IsAbs() {
		return target, RouteExternal, nil
	}
	rel, err := url.Parse(p)
	if err != nil {
		return nil, "", fmt.Errorf("parse path %q: %w", p, err)
	}

	kind := RouteTenant
	var base string
	if c.IsPublic(rel.Path) {
		kind = RoutePublic
		base = c.cfg.PublicBaseURL
	} else {
		base, err = c.tenantBaseURL()
		if err != nil {
			return nil, kind, err
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, kind, fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasPrefix(rel.Path, "/") {
		rel.Path = "/" + rel.Path
	}
	target := *baseURL
	target.Path = strings.TrimRight(baseURL.Path, "/") + rel.Path
	target.RawQuery = rel.RawQuery
	return &target, kind, nil
}

// TenantBaseURL returns the base URL tenant-scoped calls go to right now.
func (c *Client) TenantBaseURL() (string, error) {
	return c.tenantBaseURL()
}

func (c *Client) tenantBaseURL() (string, error) {
	slug, host := c.currentTenant()
	if c.cfg.DevMode {
		devHost := c.cfg.DevHost
		if h := hostOnly(host); h != "" {
			devHost = h
		}
		return c.cfg.Scheme + "://" + net.JoinHostPort(devHost, strconv.Itoa(c.cfg.DevPort)), nil
	}
	if slug == "" {
		return "", ErrTenantUnresolved
	}
	return c.cfg.Scheme + "://" + slug + "." + c.cfg.APIHost, nil
}

func (c *Client) currentTenant() (slug, host string) {
	if c.locator != nil {
		slug, host = c.locator.Current()
	}
	if slug == "" {
		slug = c.creds.TenantID()
	}
	return slug, host
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// Do sends req. Classified failures are reported through the notifier and
// returned as a Response with Failure set; other non-2xx statuses return a
// *StatusError; transport errors are returned wrapped and never notified.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, kind, err := c.route(req.Path)
	if err != nil {
		c.logger.WarnContext(ctx, "request not routable", "path", req.Path, "error", err)
		return nil, err
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanAPIRequest,
		tracer.String(tracer.AttrHTTPMethod, method),
		tracer.String(tracer.AttrHTTPPath, target.Path),
		tracer.String(tracer.AttrRoute, kind),
	)
	start := time.Now()

	resp, err := c.send(ctx, method, target, kind, req)
	if err != nil {
		c.metrics.ObserveRequest(kind, 0, start)
		span.End(err)
		c.logger.WarnContext(ctx, "request failed",
			"method", method,
			"path", target.Path,
			"route", kind,
			"error", err,
		)
		return nil, err
	}
	c.metrics.ObserveRequest(kind, resp.StatusCode, start)
	span.SetAttributes(tracer.Int(tracer.AttrHTTPStatus, resp.StatusCode))
	c.logger.DebugContext(ctx, "request completed",
		"method", method,
		"path", target.Path,
		"route", kind,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.OK() {
		span.End(nil)
		return resp, nil
	}

	class, handled := Classify(resp.StatusCode, target.Path)
	if !handled {
		statusErr := &StatusError{
			Method:     method,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
		span.End(statusErr)
		return nil, statusErr
	}

	c.reportFailure(ctx, span, kind, target.Path, &class, resp.Body)
	span.SetAttributes(tracer.Bool(tracer.AttrClassified, true))
	span.End(nil)
	resp.Failure = &class
	return resp, nil
}

func (c *Client) send(ctx context.Context, method string, target *url.URL, kind string, req Request) (*Response, error) {
	body, contentType, err := req.encodeBody()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	c.applyCredentials(httpReq.Header, kind)
	if kind != RouteExternal && httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target.Redacted(), err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       payload,
	}, nil
}

// applyCredentials sets or scrubs identity headers for the route kind.
func (c *Client) applyCredentials(h http.Header, kind string) {
	switch kind {
	case RoutePublic:
		h.Del(HeaderAuthorization)
		h.Del(HeaderTenant)
	case RouteTenant:
		h.Del(HeaderAuthorization)
		if token := c.creds.Token(); token != "" {
			h.Set(HeaderAuthorization, "Bearer "+token)
		}
		if tenantID := c.creds.TenantID(); tenantID != "" {
			h.Set(HeaderTenant, tenantID)
		}
	}
}

func (c *Client) reportFailure(ctx context.Context, span tracer.Span, kind, p string, class *Classification, body []byte) {
	if !fixedMessage(class.Status, p) {
		if msg := BodyMessage(body); msg != "" {
			class.Message = msg
		}
	}
	c.notifier.Enqueue(class.Notification())
	c.metrics.IncrementClassifiedFailure(strconv.Itoa(class.Status))
	c.logger.WarnContext(ctx, "request failure classified",
		"path", p,
		"route", kind,
		"status", class.Status,
		"message", class.Message,
	)

	if class.Status != http.StatusUnauthorized || kind == RouteExternal {
		return
	}
	if err := c.creds.ClearToken(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear token after 401", "error", err)
		return
	}
	span.AddEvent(tracer.EventCredentialsCleared)
}

// JSON sends in as a JSON body and decodes a successful response into out.
// A classified failure is returned as a CodeHandled domain error wrapping a
// *HandledError; the user has already been notified.
func (c *Client) JSON(ctx context.Context, method, p string, in, out any) error {
	resp, err := c.Do(ctx, Request{Method: method, Path: p, JSON: in})
	if err != nil {
		return err
	}
	if resp.Failure != nil {
		return dErrors.Wrap(&HandledError{Classification: *resp.Failure}, dErrors.CodeHandled, resp.Failure.Message)
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(out)
}

// HandledError marks a failure that was already shown to the user.
type HandledError struct {
	Classification Classification
}

func (e *HandledError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Classification.Status, e.Classification.Message)
}

type discardNotifier struct{}

func (discardNotifier) Enqueue(notify.Message) string { return "" }
