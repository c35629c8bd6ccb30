// Package job implements the Orchestration Job (spec §4.7): given a
// stored inbound message, it builds a Turn and drives the Controller,
// adding a second, coarser idempotency layer and a bounded retry policy
// around unhandled exceptions. It never attempts response delivery; that
// is a Sender's responsibility, out of this core's scope.
package job

import (
	"context"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
	"github.com/sergiobayona/lexi-commerce-sub001/orchestrator"
	"github.com/sergiobayona/lexi-commerce-sub001/resilience"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// StoredMessage is a stored message record as read by the job, wrapping
// the inbound fields the Turn Builder consumes with the direction flag
// the Job itself checks.
type StoredMessage struct {
	turn.RawMessage
	Outbound bool
}

// Controller is the subset of orchestrator.Controller the Job drives.
type Controller interface {
	HandleTurn(ctx context.Context, t turn.Turn) (orchestrator.Result, error)
}

// Job builds a Turn from a StoredMessage and drives a Controller, with
// job-scope idempotency and retry.
type Job struct {
	store        session.Store
	builder      *turn.Builder
	controller   Controller
	logger       core.Logger
	retryConfig  *resilience.RetryConfig
	orchestrated time.Duration
}

// New builds a Job. orchestratedTTL is the TTL of the job-scope
// idempotency marker (spec §4.7, default 1h).
func New(store session.Store, controller Controller, logger core.Logger, orchestratedTTL time.Duration) *Job {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Job{
		store:        store,
		builder:      turn.NewBuilder(),
		controller:   controller,
		logger:       logger,
		retryConfig:  resilience.DefaultRetryConfig(),
		orchestrated: orchestratedTTL,
	}
}

// Run processes one stored message. tenantID identifies the business
// number the message arrived on. A non-nil return means the retry budget
// was exhausted; the scheduler should surface it as a failed job run.
func (j *Job) Run(ctx context.Context, tenantID string, msg StoredMessage) error {
	if msg.Outbound {
		j.logger.Debug("skipping outbound message", map[string]interface{}{"message_id": msg.ID})
		return nil
	}

	orchestrated, err := j.store.IsOrchestrated(ctx, msg.ID)
	if err != nil {
		return err
	}
	if orchestrated {
		j.logger.Debug("message already orchestrated, skipping", map[string]interface{}{"message_id": msg.ID})
		return nil
	}

	t, err := j.builder.Build(tenantID, msg.RawMessage)
	if err != nil {
		j.logger.Info("inbound message malformed, skipping", map[string]interface{}{
			"message_id": msg.ID, "error": err.Error(),
		})
		return nil
	}

	if err := resilience.Retry(ctx, j.retryConfig, func() error {
		_, herr := j.controller.HandleTurn(ctx, t)
		return herr
	}); err != nil {
		return err
	}

	return j.store.MarkOrchestrated(ctx, msg.ID, j.orchestrated)
}
