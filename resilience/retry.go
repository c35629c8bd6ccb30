// Retry backs the Orchestration Job's retry-on-unhandled-exception loop
// (§4.7): up to RetryConfig.MaxAttempts tries (3 in DefaultRetryConfig, the
// policy the Job uses), bounded exponential backoff between
// them. The teacher's hand rolled exponential-backoff-with-jitter loop is
// replaced by github.com/cenkalti/backoff/v5, configured from the same
// RetryConfig shape the teacher's callers already pass around.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// RetryConfig configures a bounded exponential backoff retry loop.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig matches the Orchestration Job's default policy: 3
// attempts, starting at 100ms, doubling up to a 5s ceiling.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (c *RetryConfig) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.BackoffFactor
	return b
}

// Retry runs fn until it succeeds, config.MaxAttempts is exhausted, or ctx is
// cancelled, sleeping with bounded exponential backoff between attempts.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	maxTries := config.MaxAttempts
	if maxTries < 1 {
		maxTries = 1
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, backoff.WithBackOff(config.backOff()), backoff.WithMaxTries(uint(maxTries)))

	if err != nil {
		return fmt.Errorf("%d attempts exhausted: %w: %v", maxTries, core.ErrMaxRetriesExceeded, err)
	}
	return nil
}

// RetryWithCircuitBreaker retries fn, with each attempt gated by cb so a
// tripped breaker fails an attempt immediately instead of waiting out the
// retry's own backoff before discovering the dependency is still down.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}
