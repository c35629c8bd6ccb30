package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/core"
	"github.com/sergiobayona/lexi-commerce-sub001/router"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/telemetry"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// Controller implements the handle_turn algorithm (spec §4.1). Its
// collaborators are injected at construction: a session store, a router,
// an agent registry, and a logger, matching the spec's stated inputs.
type Controller struct {
	store        session.Store
	router       router.IntentRouter
	registry     *agent.Registry
	logger       core.Logger
	telemetry    *telemetry.Provider
	sessionTTL   time.Duration
	idempTTL     time.Duration
	maxBatonHops int
	defaultLane  string
}

// New builds a Controller. cfg supplies the TTLs and baton hop bound
// (spec §6.5); tel may be nil, in which case spans/counters are no-ops.
func New(store session.Store, r router.IntentRouter, registry *agent.Registry, cfg *core.Config, tel *telemetry.Provider) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	if tel == nil {
		tel = telemetry.NewProvider("orchestrator")
	}
	return &Controller{
		store:        store,
		router:       r,
		registry:     registry,
		logger:       logger,
		telemetry:    tel,
		sessionTTL:   cfg.DefaultSessionTTL,
		idempTTL:     cfg.DefaultIdempotencyTTL,
		maxBatonHops: cfg.MaxBatonHops,
		defaultLane:  registry.DefaultLane(),
	}
}

// HandleTurn runs the handle_turn algorithm for t (spec §4.1). The
// returned error is non-nil only for unrecoverable infrastructure faults
// (store unavailable) that a scheduler should retry; every other outcome,
// including duplicates and validation failures, is encoded in Result.
func (c *Controller) HandleTurn(ctx context.Context, t turn.Turn) (Result, error) {
	ctx, span := c.telemetry.StartSpan(ctx, telemetry.SpanTurnHandle)
	span.SetAttribute("tenant_id", t.TenantID)
	span.SetAttribute("message_id", t.MessageID)
	defer span.End()

	// 1. Idempotency gate (spec §4.1 step 1; "duplicate_turn" is a pure
	// no-op beyond logging, per §8.2).
	processed, err := c.store.IsProcessed(ctx, t.MessageID)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	if processed {
		c.logger.Info("duplicate turn", map[string]interface{}{"message_id": t.MessageID})
		return Result{Success: true, Error: "duplicate_turn"}, nil
	}

	// 2. Load or create session.
	state, err := c.loadOrCreateSession(ctx, t)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	// 3. Validate; on failure, reset to fresh defaults and stop without
	// running the agent loop (spec §8.4 scenario 5).
	lanes := c.registry.Lanes()
	if err := session.Validate(state, lanes); err != nil {
		c.logger.Warn("session validation failed, resetting to defaults", map[string]interface{}{
			"tenant_id": t.TenantID, "wa_id": t.WaID, "error": err.Error(),
		})
		state = session.NewSession(t.TenantID, t.WaID, "", "", c.defaultLane)
		if err := c.persist(ctx, t, state); err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		if err := c.store.MarkProcessed(ctx, t.MessageID, c.idempTTL); err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		return Result{Success: false, Error: "Session validation failed: " + err.Error(), Lane: state.CurrentLane}, nil
	}

	// 4. Append user turn and persist before agent invocation, so the
	// user's message survives any downstream failure.
	state.Turns = append(state.Turns, session.NewUserEntry(t.MessageID, t.Text, t.Payload, t.Timestamp))
	state.LastUserMsgID = t.MessageID
	if err := c.persist(ctx, t, state); err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	// 5. Baton-bounded agent loop.
	accumulated, err := c.runBatonLoop(ctx, t, &state, lanes)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, core.ErrAgentFailure) {
			// Spec §4.1 Failure semantics / §7 #5: an agent exception is a
			// terminal outcome for this turn, not an infrastructure fault a
			// scheduler should retry. Still mark processed so a redelivered
			// copy of the same message is treated as a duplicate, not
			// retried against the same failing agent.
			if markErr := c.store.MarkProcessed(ctx, t.MessageID, c.idempTTL); markErr != nil {
				return Result{}, markErr
			}
			return Result{Success: false, Error: err.Error(), Lane: state.CurrentLane}, nil
		}
		return Result{}, err
	}

	// 6. Mark processed.
	if err := c.store.MarkProcessed(ctx, t.MessageID, c.idempTTL); err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	c.telemetry.Metrics().IncTurnsProcessed(ctx, state.CurrentLane)
	return Result{Success: true, Lane: state.CurrentLane, Messages: accumulated}, nil
}

func (c *Controller) loadOrCreateSession(ctx context.Context, t turn.Turn) (session.State, error) {
	raw, found, err := c.store.LoadSession(ctx, t.TenantID, t.WaID)
	if err != nil {
		return session.State{}, err
	}
	if !found {
		return session.NewSession(t.TenantID, t.WaID, "", "", c.defaultLane), nil
	}
	state, err := session.FromJSON([]byte(raw), t.TenantID, t.WaID, c.defaultLane)
	if err != nil {
		return session.State{}, err
	}
	return session.Migrate(state), nil
}

func (c *Controller) persist(ctx context.Context, t turn.Turn, state session.State) error {
	state.Touch()
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.store.SaveSession(ctx, t.TenantID, t.WaID, string(raw), c.sessionTTL)
}

// runBatonLoop drives the route -> agent -> patch -> continue? cycle
// (spec §4.1 step 5), mutating state in place and returning the
// concatenated outbound messages across every hop.
func (c *Controller) runBatonLoop(ctx context.Context, t turn.Turn, state *session.State, lanes map[string]bool) ([]interface{}, error) {
	var accumulated []interface{}
	var baton *agent.Baton
	var previous router.Decision

	for hop := 0; ; hop++ {
		var decision router.Decision
		if hop == 0 {
			routeCtx, routeSpan := c.telemetry.StartSpan(ctx, telemetry.SpanRouterRoute)
			decision = c.router.Route(routeCtx, t, *state)
			routeSpan.SetAttribute("lane", decision.Lane)
			routeSpan.End()
		} else {
			decision = synthesizeFromBaton(baton, previous)
		}
		previous = decision
		state.CurrentLane = decision.Lane

		ag, err := c.registry.ForLane(decision.Lane)
		if err != nil {
			return accumulated, core.NewFrameworkError("controller.handle_turn", "AgentFailure", fmt.Errorf("%w: %v", core.ErrAgentFailure, err)).WithID(decision.Lane)
		}

		agentCtx, agentSpan := c.telemetry.StartSpan(ctx, telemetry.SpanAgentInvoke)
		agentSpan.SetAttribute("lane", decision.Lane)
		agentSpan.SetAttribute("intent", decision.Intent)
		resp, err := ag.Handle(agentCtx, t, *state, decision.Intent)
		agentSpan.End()
		if err != nil {
			c.logger.Error("agent invocation failed", map[string]interface{}{
				"lane": decision.Lane, "intent": decision.Intent, "error": err.Error(),
			})
			return accumulated, core.NewFrameworkError("controller.handle_turn", "AgentFailure", fmt.Errorf("%w: %v", core.ErrAgentFailure, err)).WithID(decision.Lane)
		}

		accumulated = append(accumulated, resp.Messages...)
		state.Turns = append(state.Turns, session.NewAssistantEntry(decision.Lane, resp.Messages, t.Timestamp))

		if len(resp.StatePatch) > 0 {
			if err := state.ApplyPatch(resp.StatePatch); err != nil {
				return accumulated, err
			}
		}
		if resp.Baton != nil {
			if carry, ok := resp.Baton.Payload["carry_state"].(map[string]interface{}); ok {
				if err := state.ApplyPatch(carry); err != nil {
					return accumulated, err
				}
			}
		}

		if err := c.persist(ctx, t, *state); err != nil {
			return accumulated, err
		}

		if resp.Baton == nil {
			return accumulated, nil
		}
		if hop >= c.maxBatonHops {
			c.logger.Info("baton_stop", map[string]interface{}{"reason": "hop_limit", "hop": hop})
			return accumulated, nil
		}
		if !lanes[resp.Baton.Target] {
			c.logger.Info("baton_stop", map[string]interface{}{"reason": "invalid_lane", "target": resp.Baton.Target})
			return accumulated, nil
		}
		if resp.Baton.Target == state.CurrentLane {
			c.logger.Info("baton_stop", map[string]interface{}{"reason": "same_lane_handoff", "target": resp.Baton.Target})
			return accumulated, nil
		}

		_, hopSpan := c.telemetry.StartSpan(ctx, telemetry.SpanBatonHop)
		hopSpan.SetAttribute("from_lane", state.CurrentLane)
		hopSpan.SetAttribute("to_lane", resp.Baton.Target)
		hopSpan.End()
		c.telemetry.Metrics().IncBatonHops(ctx, state.CurrentLane, resp.Baton.Target)
		baton = resp.Baton
	}
}

// synthesizeFromBaton builds the Decision for hop > 0 without calling the
// Router again (spec §4.1 step 5).
func synthesizeFromBaton(baton *agent.Baton, previous router.Decision) router.Decision {
	intent := "follow_up"
	if previous.Intent != "" {
		intent = previous.Intent
	}
	if v, ok := baton.Payload["intent"].(string); ok && v != "" {
		intent = v
	}

	confidence := 1.0
	if previous.Confidence != 0 {
		confidence = previous.Confidence
	}
	if v, ok := baton.Payload["confidence"].(float64); ok {
		confidence = v
	}

	reasons := []string{"baton_handoff"}
	if v, ok := baton.Payload["reasons"].([]string); ok && len(v) > 0 {
		reasons = v
	}

	return router.Decision{
		Lane:       baton.Target,
		Intent:     intent,
		Confidence: confidence,
		Reasons:    reasons,
	}
}
