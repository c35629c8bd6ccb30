package core

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide configuration for the turn orchestration
// engine (§6.5). It follows a three-layer priority, lowest to highest:
// built-in defaults, environment variables, then functional options passed
// to NewConfig — mirroring the teacher framework's configuration layering.
// The env tags are not read by reflection: loadFromEnv reads only
// SESSION_STORE_URL, DEFAULT_SESSION_TTL, DEFAULT_IDEMPOTENCY_TTL,
// MAX_BATON_HOPS, LLM_PROVIDER, LLM_API_KEY, LLM_MODEL and
// AGENTS_CONFIG_PATH; the other tagged fields are set only by defaults.
type Config struct {
	// Session store
	RedisURL              string        `env:"SESSION_STORE_URL"`
	DefaultSessionTTL     time.Duration `env:"DEFAULT_SESSION_TTL" default:"86400s"`
	DefaultIdempotencyTTL time.Duration `env:"DEFAULT_IDEMPOTENCY_TTL" default:"3600s"`
	OrchestratedTTL       time.Duration `env:"ORCHESTRATED_TTL" default:"3600s"`

	// Baton
	MaxBatonHops int `env:"MAX_BATON_HOPS" default:"2"`

	// Router / LLM provider
	LLMProvider   string        `env:"LLM_PROVIDER"`
	LLMAPIKey     string        `env:"LLM_API_KEY"`
	LLMModel      string        `env:"LLM_MODEL" default:"gpt-4"`
	RouterTimeout time.Duration `env:"ROUTER_TIMEOUT" default:"1s"`

	// Lane/agent registry resource
	AgentsConfigPath string `env:"AGENTS_CONFIG_PATH" default:"agents.yaml"`

	// Job scheduler
	JobMaxAttempts int `env:"JOB_MAX_ATTEMPTS" default:"3"`

	// Resilience
	CircuitBreakerThreshold int           `env:"CB_FAILURE_THRESHOLD" default:"5"`
	CircuitBreakerTimeout   time.Duration `env:"CB_OPEN_TIMEOUT" default:"30s"`

	Logger Logger
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithRedisURL sets the session store's Redis connection URL.
func WithRedisURL(url string) Option {
	return func(c *Config) { c.RedisURL = url }
}

// WithMaxBatonHops overrides the baton hop bound (spec default 2).
func WithMaxBatonHops(hops int) Option {
	return func(c *Config) { c.MaxBatonHops = hops }
}

// WithSessionTTL overrides the session document TTL.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *Config) { c.DefaultSessionTTL = ttl }
}

// WithIdempotencyTTL overrides the idempotency marker TTL.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(c *Config) { c.DefaultIdempotencyTTL = ttl }
}

// WithLLM sets the router's LLM provider, api key, and model.
func WithLLM(provider, apiKey, model string) Option {
	return func(c *Config) {
		c.LLMProvider = provider
		c.LLMAPIKey = apiKey
		if model != "" {
			c.LLMModel = model
		}
	}
}

// WithRouterTimeout bounds the router's LLM call (§5).
func WithRouterTimeout(d time.Duration) Option {
	return func(c *Config) { c.RouterTimeout = d }
}

// WithAgentsConfigPath points at the lane/agent registry resource (§6.5).
func WithAgentsConfigPath(path string) Option {
	return func(c *Config) { c.AgentsConfigPath = path }
}

// WithLogger injects a logger, overriding the default NoOpLogger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// defaultConfig returns the built-in defaults named in spec §6.5.
func defaultConfig() *Config {
	return &Config{
		DefaultSessionTTL:       86400 * time.Second,
		DefaultIdempotencyTTL:   3600 * time.Second,
		OrchestratedTTL:         3600 * time.Second,
		MaxBatonHops:            2,
		LLMModel:                "gpt-4",
		RouterTimeout:           time.Second,
		AgentsConfigPath:        "agents.yaml",
		JobMaxAttempts:          3,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		Logger:                  NoOpLogger{},
	}
}

// loadFromEnv overlays environment variables onto cfg, the middle layer of
// the three-layer priority.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("SESSION_STORE_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("DEFAULT_SESSION_TTL"); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.DefaultSessionTTL = d
		}
	}
	if v := os.Getenv("DEFAULT_IDEMPOTENCY_TTL"); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.DefaultIdempotencyTTL = d
		}
	}
	if v := os.Getenv("MAX_BATON_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxBatonHops = n
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLMProvider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLMModel = v
	}
	if v := os.Getenv("AGENTS_CONFIG_PATH"); v != "" {
		c.AgentsConfigPath = v
	}
}

func parseSeconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// Validate enforces the invariants a misconfigured process must fail fast
// on at startup (ConfigurationError, §7 kind 6).
func (c *Config) Validate() error {
	if c.MaxBatonHops < 0 {
		return fmt.Errorf("%w: MAX_BATON_HOPS must be >= 0", ErrConfigurationError)
	}
	if c.DefaultSessionTTL <= 0 {
		return fmt.Errorf("%w: DEFAULT_SESSION_TTL must be positive", ErrConfigurationError)
	}
	if c.DefaultIdempotencyTTL <= 0 {
		return fmt.Errorf("%w: DEFAULT_IDEMPOTENCY_TTL must be positive", ErrConfigurationError)
	}
	return nil
}

// NewConfig builds a Config from defaults, environment variables, then the
// supplied options, in that priority order, and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	c.loadFromEnv()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
