package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
	"github.com/sergiobayona/lexi-commerce-sub001/resilience"
	"github.com/sergiobayona/lexi-commerce-sub001/session"
	"github.com/sergiobayona/lexi-commerce-sub001/turn"
)

// defaultFallbackConfidence is the midpoint of the [0.1, 0.3] range §4.5
// mandates for fallback decisions.
const defaultFallbackConfidence = 0.2

const defaultRouteTimeout = time.Second

// IntentRouter is the contract the Controller depends on (spec §4.5):
// route(turn, state) -> Decision, implemented here by Router and by test
// stubs.
type IntentRouter interface {
	Route(ctx context.Context, t turn.Turn, s session.State) Decision
}

var _ IntentRouter = (*Router)(nil)

// Router routes a Turn to a lane via an LLMClassifier, guarded by a
// circuit breaker and a bounded timeout, and never returns an error: any
// failure degrades to a fallback Decision.
type Router struct {
	classifier  LLMClassifier
	breaker     *resilience.CircuitBreaker
	defaultLane string
	lanes       map[string]bool
	timeout     time.Duration
	logger      core.Logger
}

// Option configures a Router at construction.
type Option func(*Router)

// WithTimeout overrides the per-call classifier timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

// WithLogger overrides the Router's logger.
func WithLogger(l core.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithCircuitBreaker overrides the Router's circuit breaker; the default
// is built from resilience.DefaultConfig(), tuned for the router's LLM
// call.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *Router) { r.breaker = cb }
}

// New builds a Router. lanes is the configured lane set (spec §3.6);
// defaultLane must be a member of it.
func New(classifier LLMClassifier, lanes map[string]bool, defaultLane string, opts ...Option) (*Router, error) {
	if !lanes[defaultLane] {
		return nil, core.NewFrameworkError("router.new", "ConfigurationError", core.ErrConfigurationError).WithID(defaultLane)
	}

	cb, err := resilience.NewCircuitBreaker(resilience.DefaultConfig())
	if err != nil {
		return nil, err
	}

	r := &Router{
		classifier:  classifier,
		breaker:     cb,
		defaultLane: defaultLane,
		lanes:       lanes,
		timeout:     defaultRouteTimeout,
		logger:      core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Route implements the Intent Router contract (spec §4.5). It never
// raises: any classifier error, timeout, or circuit-open state degrades to
// a fallback Decision anchored on the default lane.
func (r *Router) Route(ctx context.Context, t turn.Turn, s session.State) Decision {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := ClassificationRequest{Summary: summarize(s), UserMessage: t.Text}

	var result ClassificationResult
	err := r.breaker.Execute(callCtx, func() error {
		res, cerr := r.classifier.Classify(callCtx, req)
		if cerr != nil {
			return cerr
		}
		result = res
		return nil
	})
	if err != nil {
		return r.fallback(classifyErrorKind(err))
	}

	return r.normalize(result)
}

// normalize applies §4.5's confidence clamp, reasons cap, and lane
// substitution to a successful classifier result.
func (r *Router) normalize(result ClassificationResult) Decision {
	lane := result.Lane
	if !r.lanes[lane] {
		lane = r.defaultLane
	}
	return Decision{
		Lane:       lane,
		Intent:     result.Intent,
		Confidence: clampConfidence(result.Confidence),
		Reasons:    normalizeReasons(result.Reasoning),
	}
}

// fallback builds the decision returned whenever the classifier call
// could not be completed, per §4.5: default lane, "general_info" intent,
// confidence in [0.1, 0.3], and a single reason naming the error kind.
func (r *Router) fallback(reasonPrefix string) Decision {
	r.logger.Warn("router fallback", map[string]interface{}{"reason": reasonPrefix})
	return Decision{
		Lane:       r.defaultLane,
		Intent:     "general_info",
		Confidence: defaultFallbackConfidence,
		Reasons:    []string{reasonPrefix},
	}
}

// classifyErrorKind names the failure class without leaking stack traces
// or secrets, per §4.5: "router_error:<ErrorKind>" for runtime failures,
// "config_error:<msg>" for configuration problems.
func classifyErrorKind(err error) string {
	if isConfigurationError(err) {
		return fmt.Sprintf("config_error:%s", err.Error())
	}
	return fmt.Sprintf("router_error:%s", errorKindName(err))
}

func isConfigurationError(err error) bool {
	var fe *core.FrameworkError
	return errors.As(err, &fe) && fe.Kind == "ConfigurationError"
}

func errorKindName(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "classifier_failure"
	}
}
