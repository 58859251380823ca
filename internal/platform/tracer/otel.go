package tracer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "meridian/pkg/domain-errors"
)

const instrumentationName = "meridian/client"

// OTelTracer exports spans through OpenTelemetry. Outbound API calls are
// client spans; everything else is internal.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

// WithOTelTracer injects a pre-configured OpenTelemetry tracer.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel uses the global provider unless a tracer is injected.
func NewOTel(opts ...OTelOption) *OTelTracer {
	o := &OTelTracer{}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	return o
}

func (o *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithSpanKind(spanKind(name)),
		trace.WithAttributes(toOTelAttributes(attrs)...),
	)
	return ctx, &otelSpan{span: span}
}

func spanKind(name string) trace.SpanKind {
	if name == SpanAPIRequest {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

type otelSpan struct {
	span trace.Span
}

// End tags domain errors with their code. Cancellation is recorded as an
// event and leaves the span status unset.
func (s *otelSpan) End(err error) {
	defer s.span.End()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		s.span.AddEvent(EventCanceled)
		return
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		s.span.SetAttributes(attribute.String(AttrErrorCode, string(de.Code)))
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(toOTelAttributes(attrs)...)
}

func (s *otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(toOTelAttributes(attrs)...))
}

func toOTelAttributes(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if kv, ok := toOTel(a); ok {
			out = append(out, kv)
		}
	}
	return out
}

func toOTel(a Attribute) (attribute.KeyValue, bool) {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v), true
	case []string:
		return attribute.StringSlice(a.Key, v), true
	case bool:
		return attribute.Bool(a.Key, v), true
	case int:
		return attribute.Int(a.Key, v), true
	case int64:
		return attribute.Int64(a.Key, v), true
	case float64:
		return attribute.Float64(a.Key, v), true
	case time.Duration:
		return attribute.Int64(a.Key, v.Milliseconds()), true
	}
	return attribute.KeyValue{}, false
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
