// Package tracer provides a small tracing abstraction for the tenant client.
//
// The request pipeline emits one span per outbound call through this interface
// so it never depends on OpenTelemetry APIs directly.
//
// Implementations:
//   - NoopTracer: default, zero overhead
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording err when non-nil. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanAPIRequest      = "apiclient.request"
	SpanTenantSettings  = "tenant.public_settings"
	SpanRegistrationRun = "registration.submit"
)

// Attribute keys.
const (
	AttrHTTPMethod    = "http.method"
	AttrHTTPPath      = "http.path"
	AttrHTTPStatus    = "http.status_code"
	AttrRoute         = "meridian.route"
	AttrTenant        = "meridian.tenant"
	AttrClassified    = "meridian.classified"
	AttrAuthenticated = "meridian.authenticated"
	AttrErrorCode     = "meridian.error_code"
)

// Event names.
const (
	EventCredentialsCleared = "credentials.token_cleared"
	EventCanceled           = "canceled"
)
