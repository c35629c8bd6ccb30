package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sergiobayona/lexi-commerce-sub001/agent"
	"github.com/sergiobayona/lexi-commerce-sub001/core"
	"github.com/sergiobayona/lexi-commerce-sub001/router"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRouter returns a fixed Decision for every call.
type stubRouter struct {
	decision router.Decision
}

func (s stubRouter) Route(context.Context, turn.Turn, session.State) router.Decision {
	return s.decision
}

// scriptedAgent returns a fixed Response regardless of input.
type scriptedAgent struct {
	resp agent.Response
}

func (s scriptedAgent) Handle(context.Context, turn.Turn, session.State, string) (agent.Response, error) {
	return s.resp, nil
}

// failingAgent always returns an error, exercising the AgentFailure path.
type failingAgent struct{}

func (failingAgent) Handle(context.Context, turn.Turn, session.State, string) (agent.Response, error) {
	return agent.Response{}, errors.New("boom")
}

func laneSet(ids ...string) map[string]bool {
	m := map[string]bool{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func mustRegistry(t *testing.T, lanes []agent.Lane) *agent.Registry {
	t.Helper()
	r, err := agent.NewRegistry(lanes)
	require.NoError(t, err)
	return r
}

func newTestController(t *testing.T, r router.IntentRouter, lanes []agent.Lane) (*Controller, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	cfg, err := core.NewConfig(core.WithMaxBatonHops(2))
	require.NoError(t, err)
	reg := mustRegistry(t, lanes)
	return New(store, r, reg, cfg, nil), store
}

// Scenario 1: fresh greeting.
func TestHandleTurnFreshGreeting(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{map[string]interface{}{"type": "text", "body": "¡Hola!"}}}}
	}}
	c, store := newTestController(t, stubRouter{decision: router.Decision{Lane: "info", Intent: "greeting", Confidence: 0.9, Reasons: []string{"hola"}}}, []agent.Lane{infoLane})

	result, err := c.HandleTurn(context.Background(), turn.Turn{
		TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "Hola", Timestamp: "2025-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "info", result.Lane)
	require.Len(t, result.Messages, 1)

	raw, found, err := store.LoadSession(context.Background(), "T1", "U1")
	require.NoError(t, err)
	require.True(t, found)
	var state session.State
	require.NoError(t, json.Unmarshal([]byte(raw), &state))
	assert.Equal(t, "info", state.CurrentLane)
	assert.Len(t, state.Turns, 2)

	processed, err := store.IsProcessed(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, processed)
}

// Scenario 2: replay.
func TestHandleTurnReplayIsDuplicate(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"hi"}}}
	}}
	c, store := newTestController(t, stubRouter{decision: router.Decision{Lane: "info", Intent: "greeting", Confidence: 0.9}}, []agent.Lane{infoLane})

	tr := turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "Hola", Timestamp: "2025-01-01T00:00:00Z"}
	_, err := c.HandleTurn(context.Background(), tr)
	require.NoError(t, err)

	raw1, _, _ := store.LoadSession(context.Background(), "T1", "U1")

	result, err := c.HandleTurn(context.Background(), tr)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "duplicate_turn", result.Error)
	assert.Empty(t, result.Messages)

	raw2, _, _ := store.LoadSession(context.Background(), "T1", "U1")
	assert.Equal(t, raw1, raw2)
}

// Scenario 3: baton hop info -> commerce.
func TestHandleTurnBatonHopInfoToCommerce(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{
			Messages: []interface{}{"A"},
			Baton:    &agent.Baton{Target: "commerce", Payload: map[string]interface{}{"intent": "start_order"}},
		}}
	}}
	commerceLane := agent.Lane{ID: "commerce", Description: "commerce", NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"B"}}}
	}}
	c, store := newTestController(t, stubRouter{decision: router.Decision{Lane: "info", Intent: "start_order", Confidence: 0.7}}, []agent.Lane{infoLane, commerceLane})

	// Seed from scenario 1's resulting session.
	seedResult, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "Hola", Timestamp: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.True(t, seedResult.Success)

	result, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m2", Text: "Quiero ordenar", Timestamp: "2025-01-01T00:01:00Z"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []interface{}{"A", "B"}, result.Messages)
	assert.Equal(t, "commerce", result.Lane)

	raw, _, _ := store.LoadSession(context.Background(), "T1", "U1")
	var state session.State
	require.NoError(t, json.Unmarshal([]byte(raw), &state))
	assert.Equal(t, "commerce", state.CurrentLane)
	// The seed turn also follows info -> commerce (one user + two assistant),
	// plus one user + two assistant from this turn.
	assert.Len(t, state.Turns, 6)
}

// Scenario 4: baton cap. Three agents each hand off to the next lane;
// MAX_BATON_HOPS=2 bounds the chain to exactly three invocations.
func TestHandleTurnBatonCapStopsAtHopLimit(t *testing.T) {
	laneA := agent.Lane{ID: "a", Description: "a", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"from-a"}, Baton: &agent.Baton{Target: "b"}}}
	}}
	laneB := agent.Lane{ID: "b", Description: "b", NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"from-b"}, Baton: &agent.Baton{Target: "c"}}}
	}}
	laneC := agent.Lane{ID: "c", Description: "c", NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"from-c"}, Baton: &agent.Baton{Target: "a"}}}
	}}
	c, _ := newTestController(t, stubRouter{decision: router.Decision{Lane: "a"}}, []agent.Lane{laneA, laneB, laneC})

	result, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "go", Timestamp: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []interface{}{"from-a", "from-b", "from-c"}, result.Messages)
	assert.Equal(t, "c", result.Lane)
}

// A stored session at version 0 (spec §9's versioning escape hatch) is
// upgraded to the current version as part of loading, before validation.
func TestHandleTurnMigratesStoredSessionVersion(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"hi"}}}
	}}
	c, store := newTestController(t, stubRouter{decision: router.Decision{Lane: "info"}}, []agent.Lane{infoLane})

	require.NoError(t, store.SaveSession(context.Background(), "T1", "U1", `{"tenant_id":"T1","wa_id":"U1","current_lane":"info","version":0}`, 0))

	result, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "hi", Timestamp: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	raw, found, err := store.LoadSession(context.Background(), "T1", "U1")
	require.NoError(t, err)
	require.True(t, found)
	var state session.State
	require.NoError(t, json.Unmarshal([]byte(raw), &state))
	assert.Equal(t, 1, state.Version)
}

// Scenario 5: validator corruption.
func TestHandleTurnValidatorCorruptionResetsSession(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"hi"}}}
	}}
	c, store := newTestController(t, stubRouter{decision: router.Decision{Lane: "info"}}, []agent.Lane{infoLane})

	require.NoError(t, store.SaveSession(context.Background(), "T1", "U1", `{"current_lane":"BOGUS"}`, 0))

	result, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "hi", Timestamp: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Session validation failed")

	raw, found, err := store.LoadSession(context.Background(), "T1", "U1")
	require.NoError(t, err)
	require.True(t, found)
	var state session.State
	require.NoError(t, json.Unmarshal([]byte(raw), &state))
	assert.Equal(t, "info", state.CurrentLane)

	processed, err := store.IsProcessed(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, processed, "marker must be set to avoid infinite retry")
}

// Scenario: agent exception (spec §4.1 Failure semantics, §7 #5). An agent
// that returns an error must surface as a failed turn, not a disguised
// success, but the message is still marked processed so a redelivered copy
// is treated as a duplicate rather than retried against the same agent.
func TestHandleTurnAgentFailureReturnsUnsuccessfulResult(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return failingAgent{}
	}}
	c, store := newTestController(t, stubRouter{decision: router.Decision{Lane: "info", Intent: "greeting"}}, []agent.Lane{infoLane})

	result, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "hi", Timestamp: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, "info", result.Lane)
	assert.Empty(t, result.Messages)

	processed, err := store.IsProcessed(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, processed, "marker must be set so a redelivered copy is a duplicate, not retried")
}

// Scenario 6: router exception. The Router contract itself never raises
// (spec §4.5); this exercises the fallback Decision it produces.
func TestHandleTurnRouterFallbackStillProducesResult(t *testing.T) {
	infoLane := agent.Lane{ID: "info", Description: "info", IsDefault: true, NewAgent: func() agent.Agent {
		return scriptedAgent{resp: agent.Response{Messages: []interface{}{"fallback reply"}}}
	}}
	fallback := stubRouter{decision: router.Decision{Lane: "info", Intent: "general_info", Confidence: 0.2, Reasons: []string{"router_error:timeout"}}}
	c, _ := newTestController(t, fallback, []agent.Lane{infoLane})

	result, err := c.HandleTurn(context.Background(), turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "hi", Timestamp: "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "info", result.Lane)
}
