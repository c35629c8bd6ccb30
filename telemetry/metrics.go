package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counters holds the turn-orchestration counters SPEC_FULL.md's telemetry
// section names: turns processed, baton hops taken, and router fallbacks.
type Counters struct {
	mu sync.Mutex

	turnsProcessed  metric.Int64Counter
	batonHops       metric.Int64Counter
	routerFallbacks metric.Int64Counter
}

// NewCounters creates the counter instruments against the global
// MeterProvider under the given meter name.
func NewCounters(meterName string) *Counters {
	meter := otel.Meter(meterName)
	turnsProcessed, _ := meter.Int64Counter("turn.processed",
		metric.WithDescription("turns the Controller has finished handling"))
	batonHops, _ := meter.Int64Counter("baton.hops",
		metric.WithDescription("baton handoffs taken within a single turn"))
	routerFallbacks, _ := meter.Int64Counter("router.fallbacks",
		metric.WithDescription("turns routed via the deterministic fallback instead of the LLM classifier"))

	return &Counters{
		turnsProcessed:  turnsProcessed,
		batonHops:       batonHops,
		routerFallbacks: routerFallbacks,
	}
}

// IncTurnsProcessed records one turn reaching a terminal outcome.
func (c *Counters) IncTurnsProcessed(ctx context.Context, lane string) {
	if c == nil || c.turnsProcessed == nil {
		return
	}
	c.turnsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("lane", lane)))
}

// IncBatonHops records one baton handoff between lanes.
func (c *Counters) IncBatonHops(ctx context.Context, fromLane, toLane string) {
	if c == nil || c.batonHops == nil {
		return
	}
	c.batonHops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_lane", fromLane),
		attribute.String("to_lane", toLane),
	))
}

// IncRouterFallbacks records the router falling back to the deterministic
// default, tagged with why.
func (c *Counters) IncRouterFallbacks(ctx context.Context, reason string) {
	if c == nil || c.routerFallbacks == nil {
		return
	}
	c.routerFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
