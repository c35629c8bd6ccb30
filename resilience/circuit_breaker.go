// This file adapts the framework's production circuit breaker down to the
// single use SPEC_FULL.md wires it to: guarding the Router's LLM call (§5)
// so a flaky or slow classifier degrades to the deterministic fallback
// instead of blocking every turn. The sliding-window error-rate state
// machine and structured logging are kept verbatim in spirit; the
// orphaned-token bookkeeping and legacy constructors the teacher carried
// for its general-purpose callers are dropped since this module has one
// caller shape (bounded, single-flight LLM calls per turn).
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// CircuitState is the circuit breaker's current mode.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute when the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrorClassifier decides whether an error should count toward the breaker's
// failure rate. Context cancellation and caller-side errors should not.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts everything except context cancellation,
// which reflects the caller giving up rather than the dependency failing.
// A context.DeadlineExceeded error (such as the Router's own call timeout)
// does count, so a slow dependency can trip the breaker.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Name             string
	ErrorThreshold   float64       // error rate (0..1) that trips the breaker
	VolumeThreshold  int           // minimum requests before evaluating error rate
	SleepWindow      time.Duration // time spent open before probing half-open
	HalfOpenRequests int           // trial requests allowed while half-open
	SuccessThreshold float64       // success rate required to close from half-open
	WindowSize       time.Duration // sliding window duration for the error rate
	BucketCount      int           // buckets within the window
	ErrorClassifier  ErrorClassifier
	Logger           core.Logger
}

// DefaultConfig returns the breaker configuration SPEC_FULL.md's router
// wiring uses: a 50% error rate over a minimum of 5 calls trips the breaker
// for 30s, then 3 half-open probes decide recovery.
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "router.llm",
		ErrorThreshold:   0.5,
		VolumeThreshold:  5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 3,
		SuccessThreshold: 0.6,
		WindowSize:       60 * time.Second,
		BucketCount:      10,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           core.NoOpLogger{},
	}
}

func (c *CircuitBreakerConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: circuit breaker name is required", core.ErrConfigurationError)
	}
	if c.ErrorThreshold < 0 || c.ErrorThreshold > 1 {
		return fmt.Errorf("%w: error threshold must be in [0,1]", core.ErrConfigurationError)
	}
	if c.HalfOpenRequests < 1 {
		return fmt.Errorf("%w: half-open requests must be >= 1", core.ErrConfigurationError)
	}
	return nil
}

// CircuitBreaker protects a single dependency call behind a closed / open /
// half-open state machine backed by a sliding error-rate window.
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	window *slidingWindow

	mu             sync.Mutex
	state          CircuitState
	stateChangedAt time.Time

	halfOpenTotal     atomic.Int32
	halfOpenSuccesses atomic.Int32
	halfOpenFailures  atomic.Int32
}

// NewCircuitBreaker validates config and constructs a breaker in the closed
// state. A nil config falls back to DefaultConfig.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = core.NoOpLogger{}
	}
	if config.WindowSize == 0 {
		config.WindowSize = 60 * time.Second
	}
	if config.BucketCount == 0 {
		config.BucketCount = 10
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{
		config:         config,
		window:         newSlidingWindow(config.WindowSize, config.BucketCount),
		state:          StateClosed,
		stateChangedAt: time.Now(),
	}, nil
}

// Execute runs fn if the breaker currently allows it, recording the outcome
// against the error-rate window and evaluating whether to change state.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		cb.config.Logger.Debug("circuit breaker rejected call", map[string]interface{}{
			"name":  cb.config.Name,
			"state": cb.GetState(),
		})
		return fmt.Errorf("%s: %w", cb.config.Name, ErrCircuitOpen)
	}

	err := fn()
	cb.recordResult(err)
	return err
}

// allow reports whether a call may proceed, transitioning open->half-open
// once the sleep window has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.stateChangedAt) < cb.config.SleepWindow {
			return false
		}
		cb.transitionLocked(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if int(cb.halfOpenTotal.Load()) >= cb.config.HalfOpenRequests {
			return false
		}
		cb.halfOpenTotal.Add(1)
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	counts := cb.config.ErrorClassifier(err)
	if err == nil {
		cb.window.recordSuccess()
	} else if counts {
		cb.window.recordFailure()
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		total := cb.window.total()
		if total >= uint64(cb.config.VolumeThreshold) && cb.window.errorRate() >= cb.config.ErrorThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if err == nil {
			cb.halfOpenSuccesses.Add(1)
		} else if counts {
			cb.halfOpenFailures.Add(1)
		}
		successes, failures := cb.halfOpenSuccesses.Load(), cb.halfOpenFailures.Load()
		if int(successes+failures) >= cb.config.HalfOpenRequests {
			if float64(successes)/float64(successes+failures) >= cb.config.SuccessThreshold {
				cb.transitionLocked(StateClosed)
			} else {
				cb.transitionLocked(StateOpen)
			}
		}
	}
}

// transitionLocked changes state; caller must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(newState CircuitState) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	cb.stateChangedAt = time.Now()
	if newState == StateHalfOpen {
		cb.halfOpenTotal.Store(0)
		cb.halfOpenSuccesses.Store(0)
		cb.halfOpenFailures.Store(0)
	}
	cb.config.Logger.Info("circuit breaker state changed", map[string]interface{}{
		"name": cb.config.Name,
		"from": old.String(),
		"to":   newState.String(),
	})
}

// GetState returns the breaker's current state as a string.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// Reset forces the breaker back to closed and clears its window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.window = newSlidingWindow(cb.config.WindowSize, cb.config.BucketCount)
}

// slidingWindow tracks success/failure counts over rolling time buckets.
type slidingWindow struct {
	mu         sync.Mutex
	buckets    []bucket
	windowSize time.Duration
	bucketSize time.Duration
	currentIdx int
	lastRotate time.Time
}

type bucket struct {
	timestamp time.Time
	success   uint64
	failure   uint64
}

func newSlidingWindow(windowSize time.Duration, bucketCount int) *slidingWindow {
	if bucketCount <= 0 {
		bucketCount = 10
	}
	now := time.Now()
	buckets := make([]bucket, bucketCount)
	for i := range buckets {
		buckets[i].timestamp = now
	}
	return &slidingWindow{
		buckets:    buckets,
		windowSize: windowSize,
		bucketSize: windowSize / time.Duration(bucketCount),
		lastRotate: now,
	}
}

func (sw *slidingWindow) rotate() {
	now := time.Now()
	elapsed := now.Sub(sw.lastRotate)
	if elapsed < sw.bucketSize {
		return
	}
	toRotate := int(elapsed / sw.bucketSize)
	if toRotate > len(sw.buckets) {
		toRotate = len(sw.buckets)
	}
	for i := 0; i < toRotate; i++ {
		sw.currentIdx = (sw.currentIdx + 1) % len(sw.buckets)
		sw.buckets[sw.currentIdx] = bucket{timestamp: now}
	}
	sw.lastRotate = now
}

func (sw *slidingWindow) recordSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	sw.buckets[sw.currentIdx].success++
}

func (sw *slidingWindow) recordFailure() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	sw.buckets[sw.currentIdx].failure++
}

func (sw *slidingWindow) counts() (success, failure uint64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	cutoff := time.Now().Add(-sw.windowSize)
	for _, b := range sw.buckets {
		if b.timestamp.After(cutoff) {
			success += b.success
			failure += b.failure
		}
	}
	return success, failure
}

func (sw *slidingWindow) total() uint64 {
	s, f := sw.counts()
	return s + f
}

func (sw *slidingWindow) errorRate() float64 {
	s, f := sw.counts()
	if s+f == 0 {
		return 0
	}
	return float64(f) / float64(s+f)
}
