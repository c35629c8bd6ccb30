package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
	"github.com/sergiobayona/lexi-commerce-sub001/orchestrator"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubController struct {
	calls   int
	fail    int
	lastErr error
}

func (s *stubController) HandleTurn(context.Context, turn.Turn) (orchestrator.Result, error) {
	s.calls++
	if s.calls <= s.fail {
		return orchestrator.Result{}, errors.New("transient store error")
	}
	return orchestrator.Result{Success: true}, nil
}

func TestJobSkipsOutboundMessages(t *testing.T) {
	store := session.NewMemoryStore()
	ctrl := &stubController{}
	j := New(store, ctrl, core.NoOpLogger{}, time.Hour)

	err := j.Run(context.Background(), "T1", StoredMessage{RawMessage: turn.RawMessage{ID: "m1", Type: "text"}, Outbound: true})
	require.NoError(t, err)
	assert.Equal(t, 0, ctrl.calls)
}

func TestJobSkipsAlreadyOrchestrated(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.MarkOrchestrated(context.Background(), "m1", time.Hour))
	ctrl := &stubController{}
	j := New(store, ctrl, core.NoOpLogger{}, time.Hour)

	err := j.Run(context.Background(), "T1", StoredMessage{RawMessage: turn.RawMessage{ID: "m1", Type: "text", Text: &turn.RawText{Body: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, 0, ctrl.calls)
}

func TestJobSkipsMalformedMessageWithoutError(t *testing.T) {
	store := session.NewMemoryStore()
	ctrl := &stubController{}
	j := New(store, ctrl, core.NoOpLogger{}, time.Hour)

	err := j.Run(context.Background(), "T1", StoredMessage{RawMessage: turn.RawMessage{ID: "m1", Type: "unsupported"}})
	require.NoError(t, err)
	assert.Equal(t, 0, ctrl.calls)

	orchestrated, err := store.IsOrchestrated(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, orchestrated, "malformed messages are not orchestrated")
}

func TestJobMarksOrchestratedAfterSuccess(t *testing.T) {
	store := session.NewMemoryStore()
	ctrl := &stubController{}
	j := New(store, ctrl, core.NoOpLogger{}, time.Hour)

	err := j.Run(context.Background(), "T1", StoredMessage{RawMessage: turn.RawMessage{ID: "m1", Type: "text", Text: &turn.RawText{Body: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.calls)

	orchestrated, err := store.IsOrchestrated(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, orchestrated)
}

func TestJobRetriesOnControllerFailure(t *testing.T) {
	store := session.NewMemoryStore()
	ctrl := &stubController{fail: 2}
	j := New(store, ctrl, core.NoOpLogger{}, time.Hour)

	err := j.Run(context.Background(), "T1", StoredMessage{RawMessage: turn.RawMessage{ID: "m1", Type: "text", Text: &turn.RawText{Body: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, 3, ctrl.calls)
}

func TestJobExhaustsRetryBudgetAndReturnsError(t *testing.T) {
	store := session.NewMemoryStore()
	ctrl := &stubController{fail: 99}
	j := New(store, ctrl, core.NoOpLogger{}, time.Hour)

	err := j.Run(context.Background(), "T1", StoredMessage{RawMessage: turn.RawMessage{ID: "m1", Type: "text", Text: &turn.RawText{Body: "hi"}}})
	require.Error(t, err)
	assert.Equal(t, 3, ctrl.calls)

	orchestrated, err := store.IsOrchestrated(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, orchestrated, "exhausted retries must not mark orchestrated")
}
