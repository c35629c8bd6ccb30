// Package telemetry wraps the OpenTelemetry tracer/meter the orchestrator
// instruments its turn-handling pipeline with. It deliberately stops at the
// global TracerProvider/MeterProvider the process wires up at startup
// (stdout, OTLP, or the SDK's default no-op) rather than owning exporter
// configuration itself, the way the teacher framework's OTelProvider did —
// SPEC_FULL.md scopes this module to emitting spans and counters, not to
// shipping an exporter pipeline.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names emitted along the Controller/Router turn-handling path.
const (
	SpanTurnHandle  = "turn.handle"
	SpanRouterRoute = "router.route"
	SpanAgentInvoke = "agent.invoke"
	SpanBatonHop    = "baton.hop"
)

// Provider is the telemetry handle passed to the Controller.
type Provider struct {
	tracer  trace.Tracer
	metrics *Counters
}

// NewProvider returns a Provider bound to the global TracerProvider and
// MeterProvider under the given instrumentation name.
func NewProvider(name string) *Provider {
	return &Provider{
		tracer:  otel.Tracer(name),
		metrics: NewCounters(name),
	}
}

// StartSpan starts a span, returning the derived context and a handle to
// close over. Safe to call even if no SDK provider was ever configured: the
// global default is a no-op tracer.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, Span{span: span}
}

// Metrics exposes the provider's counter set.
func (p *Provider) Metrics() *Counters {
	return p.metrics
}

// Span wraps an OpenTelemetry span with the attribute-setting surface the
// orchestrator's call sites use.
type Span struct {
	span trace.Span
}

// End closes the span.
func (s Span) End() {
	s.span.End()
}

// SetAttribute records a single key/value on the span, stringifying values
// the OTel API has no direct attribute constructor for.
func (s Span) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// RecordError marks the span as failed and attaches err.
func (s Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
}
