package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func laneSet(ids ...string) map[string]bool {
	m := map[string]bool{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

type stubClassifier struct {
	result ClassificationResult
	err    error
}

func (s stubClassifier) Classify(context.Context, ClassificationRequest) (ClassificationResult, error) {
	return s.result, s.err
}

func TestRouteReturnsClassifierDecision(t *testing.T) {
	r, err := New(stubClassifier{result: ClassificationResult{
		Lane: "info", Intent: "greeting", Confidence: 0.9, Reasoning: []string{"hola"},
	}}, laneSet("info", "commerce"), "info")
	require.NoError(t, err)

	d := r.Route(context.Background(), turn.Turn{Text: "Hola"}, session.NewSession("T1", "U1", "", "", "info"))
	assert.Equal(t, "info", d.Lane)
	assert.Equal(t, "greeting", d.Intent)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, []string{"hola"}, d.Reasons)
}

func TestRouteClampsConfidence(t *testing.T) {
	r, err := New(stubClassifier{result: ClassificationResult{Lane: "info", Confidence: 5.0}}, laneSet("info"), "info")
	require.NoError(t, err)
	d := r.Route(context.Background(), turn.Turn{}, session.State{})
	assert.Equal(t, 1.0, d.Confidence)
}

func TestRouteTruncatesReasons(t *testing.T) {
	r, err := New(stubClassifier{result: ClassificationResult{
		Lane: "info", Reasoning: []string{"a", "b", "c", "d", "e", "f"},
	}}, laneSet("info"), "info")
	require.NoError(t, err)
	d := r.Route(context.Background(), turn.Turn{}, session.State{})
	assert.Len(t, d.Reasons, maxReasons)
}

func TestRouteSubstitutesDefaultLaneWhenUnconfigured(t *testing.T) {
	r, err := New(stubClassifier{result: ClassificationResult{Lane: "BOGUS"}}, laneSet("info", "commerce"), "info")
	require.NoError(t, err)
	d := r.Route(context.Background(), turn.Turn{}, session.State{})
	assert.Equal(t, "info", d.Lane)
}

func TestRouteFallsBackOnClassifierError(t *testing.T) {
	r, err := New(stubClassifier{err: errors.New("boom")}, laneSet("info", "commerce"), "info")
	require.NoError(t, err)
	d := r.Route(context.Background(), turn.Turn{}, session.State{})
	assert.Equal(t, "info", d.Lane)
	assert.Equal(t, "general_info", d.Intent)
	assert.GreaterOrEqual(t, d.Confidence, 0.1)
	assert.LessOrEqual(t, d.Confidence, 0.3)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "router_error:")
}

func TestRouteFallsBackOnTimeout(t *testing.T) {
	slow := stubClassifier{}
	blocking := blockingClassifier{inner: slow, delay: 50 * time.Millisecond}
	r, err := New(blocking, laneSet("info"), "info", WithTimeout(5*time.Millisecond))
	require.NoError(t, err)
	d := r.Route(context.Background(), turn.Turn{}, session.State{})
	assert.Equal(t, "info", d.Lane)
	assert.Contains(t, d.Reasons[0], "router_error:")
}

func TestNewRejectsUnconfiguredDefaultLane(t *testing.T) {
	_, err := New(stubClassifier{}, laneSet("info"), "BOGUS")
	require.Error(t, err)
}

type blockingClassifier struct {
	inner LLMClassifier
	delay time.Duration
}

func (b blockingClassifier) Classify(ctx context.Context, req ClassificationRequest) (ClassificationResult, error) {
	select {
	case <-time.After(b.delay):
		return b.inner.Classify(ctx, req)
	case <-ctx.Done():
		return ClassificationResult{}, ctx.Err()
	}
}
