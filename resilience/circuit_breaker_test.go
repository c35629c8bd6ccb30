package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "test",
		ErrorThreshold:   0.5,
		VolumeThreshold:  4,
		SleepWindow:      20 * time.Millisecond,
		HalfOpenRequests: 1,
		SuccessThreshold: 1.0,
		WindowSize:       time.Second,
		BucketCount:      10,
	}
}

func TestCircuitBreakerStaysClosedBelowVolumeThreshold(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	assert.Equal(t, "closed", cb.GetState())
}

func TestCircuitBreakerTripsOnErrorRate(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	assert.Equal(t, "open", cb.GetState())
}

func TestCircuitBreakerRejectsWhileOpen(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.Equal(t, "open", cb.GetState())

	calls := 0
	execErr := cb.Execute(context.Background(), func() error { calls++; return nil })
	assert.ErrorIs(t, execErr, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestCircuitBreakerHalfOpenRecoversOnSuccess(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.Equal(t, "open", cb.GetState())

	time.Sleep(30 * time.Millisecond)

	err = cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState())
}

func TestCircuitBreakerHalfOpenReopensOnFailure(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.Equal(t, "open", cb.GetState())

	time.Sleep(30 * time.Millisecond)

	_ = cb.Execute(context.Background(), func() error { return errors.New("still broken") })
	assert.Equal(t, "open", cb.GetState())
}

func TestCircuitBreakerResetClearsState(t *testing.T) {
	cb, err := NewCircuitBreaker(testConfig())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.Equal(t, "open", cb.GetState())

	cb.Reset()
	assert.Equal(t, "closed", cb.GetState())
}

func TestNewCircuitBreakerRejectsInvalidConfig(t *testing.T) {
	_, err := NewCircuitBreaker(&CircuitBreakerConfig{Name: "", ErrorThreshold: 0.5, HalfOpenRequests: 1})
	assert.Error(t, err)
}

func TestDefaultErrorClassifierIgnoresContextCanceled(t *testing.T) {
	assert.False(t, DefaultErrorClassifier(context.Canceled))
	assert.False(t, DefaultErrorClassifier(nil))
	assert.True(t, DefaultErrorClassifier(errors.New("boom")))
}
