// Package config loads gateway configuration from environment
// variables and maps it onto the sub-package configuration types.
package config

import (
	"fmt"
	"time"

	"lexgate/internal/infra/cache"
	"lexgate/internal/infra/caselaw"
	"lexgate/internal/infra/generation"
	"lexgate/internal/infra/retrieval"
	"lexgate/internal/resilience"
	"lexgate/internal/resilience/circuitbreaker"
	"lexgate/internal/resilience/retry"
	"lexgate/internal/usecase/query"
	"lexgate/pkg/config"
)

// GatewayConfig holds the full configuration of the query gateway.
type GatewayConfig struct {
	// HTTPAddr is the listen address of the HTTP server.
	// Default: ":8080"
	HTTPAddr string

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	Cache      CacheConfig
	Retrieval  BackendConfig
	CaseLaw    CaseLawConfig
	Generation GenerationConfig
	Resilience ResilienceConfig
	Router     RouterConfig
}

// CacheConfig holds Redis cache settings.
type CacheConfig struct {
	// Addr is the Redis address. Default: "localhost:6379"
	Addr string
	// Password for Redis AUTH, empty for none.
	Password string
	// DB is the Redis logical database index.
	DB int
	// KeyPrefix namespaces all gateway keys. Default: "lexgate"
	KeyPrefix string
	// DefaultTTL applies when a write does not set its own TTL.
	DefaultTTL time.Duration
	// OpTimeout bounds a single cache operation.
	OpTimeout time.Duration
}

// BackendConfig holds settings shared by plain HTTP backends.
type BackendConfig struct {
	// BaseURL of the backend service.
	BaseURL string
	// APIKey sent as a bearer token, empty for none.
	APIKey string
	// HTTPTimeout bounds a single HTTP exchange.
	HTTPTimeout time.Duration
}

// CaseLawConfig holds case-search backend settings.
type CaseLawConfig struct {
	BackendConfig

	// RequestsPerSecond smooths outbound request rate, zero disables.
	RequestsPerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
}

// GenerationConfig holds LLM provider selection and credentials.
type GenerationConfig struct {
	// Provider is "openai", "claude" or "noop". Default: "noop"
	Provider string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	AnthropicAPIKey string
	ClaudeModel     string
}

// ResilienceConfig holds the knobs behind the per-class policies. Retry
// bounds are shared across classes; timeouts and attempt counts differ
// per class.
type ResilienceConfig struct {
	// RetryMinDelay is the first backoff delay. Default: 1s
	RetryMinDelay time.Duration
	// RetryMaxDelay caps the backoff delay. Default: 10s
	RetryMaxDelay time.Duration
	// RetryMultiplier grows the delay between attempts. Default: 2.0
	RetryMultiplier float64

	// BreakerFailMax is the consecutive-failure trip threshold.
	// Default: 5
	BreakerFailMax int
	// BreakerTimeout is the open-state cooldown before a half-open
	// probe. Default: 60s
	BreakerTimeout time.Duration

	// Per-class overall timeouts.
	GenerationTimeout time.Duration
	RetrievalTimeout  time.Duration
	CaseSearchTimeout time.Duration
	GenericTimeout    time.Duration

	// Per-class attempt budgets.
	GenerationAttempts int
	RetrievalAttempts  int
	CaseSearchAttempts int
}

// RouterConfig holds query router settings.
type RouterConfig struct {
	// SourceTTL is the cache lifetime for per-source results.
	SourceTTL time.Duration
	// AnswerTTL is the cache lifetime for buffered answers.
	AnswerTTL time.Duration
	// MaxContextChars is the composed-context size budget.
	MaxContextChars int
	// TopK caps document retrieval results.
	TopK int
	// CaseLimit caps case-search results.
	CaseLimit int
	// CaseInstance is the court instance filter for case search.
	CaseInstance string
	// MaxTokens caps generation response length.
	MaxTokens int
	// Temperature is the generation sampling temperature.
	Temperature float64
}

// Load reads gateway configuration from environment variables, applying
// defaults for anything unset.
func Load() (*GatewayConfig, error) {
	cfg := &GatewayConfig{
		HTTPAddr:        config.GetEnvString("HTTP_ADDR", ":8080"),
		ShutdownTimeout: config.GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        config.GetEnvString("LOG_LEVEL", "info"),
		Cache: CacheConfig{
			Addr:       config.GetEnvString("REDIS_ADDR", "localhost:6379"),
			Password:   config.GetEnvString("REDIS_PASSWORD", ""),
			DB:         config.GetEnvInt("REDIS_DB", 0),
			KeyPrefix:  config.GetEnvString("CACHE_KEY_PREFIX", "lexgate"),
			DefaultTTL: config.GetEnvDuration("CACHE_DEFAULT_TTL", time.Hour),
			OpTimeout:  config.GetEnvDuration("CACHE_OP_TIMEOUT", 2*time.Second),
		},
		Retrieval: BackendConfig{
			BaseURL:     config.GetEnvString("RETRIEVAL_BASE_URL", "http://localhost:8001"),
			APIKey:      config.GetEnvString("RETRIEVAL_API_KEY", ""),
			HTTPTimeout: config.GetEnvDuration("RETRIEVAL_HTTP_TIMEOUT", 30*time.Second),
		},
		CaseLaw: CaseLawConfig{
			BackendConfig: BackendConfig{
				BaseURL:     config.GetEnvString("CASELAW_BASE_URL", "http://localhost:3000"),
				APIKey:      config.GetEnvString("CASELAW_API_KEY", ""),
				HTTPTimeout: config.GetEnvDuration("CASELAW_HTTP_TIMEOUT", 30*time.Second),
			},
			RequestsPerSecond: config.GetEnvFloat("CASELAW_RPS", 5),
			Burst:             config.GetEnvInt("CASELAW_BURST", 5),
		},
		Generation: GenerationConfig{
			Provider:        config.GetEnvString("GENERATION_PROVIDER", "noop"),
			OpenAIAPIKey:    config.GetEnvString("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   config.GetEnvString("OPENAI_BASE_URL", ""),
			OpenAIModel:     config.GetEnvString("OPENAI_MODEL", ""),
			AnthropicAPIKey: config.GetEnvString("ANTHROPIC_API_KEY", ""),
			ClaudeModel:     config.GetEnvString("CLAUDE_MODEL", ""),
		},
		Resilience: ResilienceConfig{
			RetryMinDelay:      config.GetEnvDuration("RETRY_MIN_DELAY", time.Second),
			RetryMaxDelay:      config.GetEnvDuration("RETRY_MAX_DELAY", 10*time.Second),
			RetryMultiplier:    config.GetEnvFloat("RETRY_MULTIPLIER", 2.0),
			BreakerFailMax:     config.GetEnvInt("BREAKER_FAIL_MAX", 5),
			BreakerTimeout:     config.GetEnvDuration("BREAKER_TIMEOUT", 60*time.Second),
			GenerationTimeout:  config.GetEnvDuration("TIMEOUT_GENERATION", 120*time.Second),
			RetrievalTimeout:   config.GetEnvDuration("TIMEOUT_RETRIEVAL", 60*time.Second),
			CaseSearchTimeout:  config.GetEnvDuration("TIMEOUT_CASE_SEARCH", 45*time.Second),
			GenericTimeout:     config.GetEnvDuration("TIMEOUT_GENERIC", 30*time.Second),
			GenerationAttempts: config.GetEnvInt("RETRY_GENERATION_ATTEMPTS", 2),
			RetrievalAttempts:  config.GetEnvInt("RETRY_RETRIEVAL_ATTEMPTS", 3),
			CaseSearchAttempts: config.GetEnvInt("RETRY_CASE_SEARCH_ATTEMPTS", 4),
		},
		Router: RouterConfig{
			SourceTTL:       config.GetEnvDuration("CACHE_SOURCE_TTL", time.Hour),
			AnswerTTL:       config.GetEnvDuration("CACHE_ANSWER_TTL", 30*time.Minute),
			MaxContextChars: config.GetEnvInt("MAX_CONTEXT_CHARS", 8000),
			TopK:            config.GetEnvInt("RETRIEVAL_TOP_K", 5),
			CaseLimit:       config.GetEnvInt("CASELAW_LIMIT", 5),
			CaseInstance:    config.GetEnvString("CASELAW_INSTANCE", "3"),
			MaxTokens:       config.GetEnvInt("GENERATION_MAX_TOKENS", 1024),
			Temperature:     config.GetEnvFloat("GENERATION_TEMPERATURE", 0.7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration correctness.
func (c *GatewayConfig) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR cannot be empty")
	}
	if c.Cache.Addr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}
	if c.Retrieval.BaseURL == "" {
		return fmt.Errorf("RETRIEVAL_BASE_URL cannot be empty")
	}
	if c.CaseLaw.BaseURL == "" {
		return fmt.Errorf("CASELAW_BASE_URL cannot be empty")
	}

	for name, d := range map[string]time.Duration{
		"SHUTDOWN_TIMEOUT":    c.ShutdownTimeout,
		"CACHE_DEFAULT_TTL":   c.Cache.DefaultTTL,
		"CACHE_OP_TIMEOUT":    c.Cache.OpTimeout,
		"CACHE_SOURCE_TTL":    c.Router.SourceTTL,
		"CACHE_ANSWER_TTL":    c.Router.AnswerTTL,
		"RETRY_MIN_DELAY":     c.Resilience.RetryMinDelay,
		"RETRY_MAX_DELAY":     c.Resilience.RetryMaxDelay,
		"BREAKER_TIMEOUT":     c.Resilience.BreakerTimeout,
		"TIMEOUT_GENERATION":  c.Resilience.GenerationTimeout,
		"TIMEOUT_RETRIEVAL":   c.Resilience.RetrievalTimeout,
		"TIMEOUT_CASE_SEARCH": c.Resilience.CaseSearchTimeout,
		"TIMEOUT_GENERIC":     c.Resilience.GenericTimeout,
	} {
		if err := config.ValidatePositiveDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Resilience.RetryMinDelay > c.Resilience.RetryMaxDelay {
		return fmt.Errorf("RETRY_MIN_DELAY cannot exceed RETRY_MAX_DELAY")
	}
	if c.Resilience.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}
	if c.Resilience.BreakerFailMax < 1 {
		return fmt.Errorf("BREAKER_FAIL_MAX must be at least 1")
	}
	if c.Router.MaxContextChars < 1 {
		return fmt.Errorf("MAX_CONTEXT_CHARS must be at least 1")
	}
	if c.Router.TopK < 1 || c.Router.CaseLimit < 1 {
		return fmt.Errorf("RETRIEVAL_TOP_K and CASELAW_LIMIT must be at least 1")
	}

	return nil
}

// Policies maps the resilience knobs onto per-class policies.
func (c *GatewayConfig) Policies() resilience.Policies {
	r := c.Resilience

	retryFor := func(attempts int, jitter float64) retry.Config {
		return retry.Config{
			MaxAttempts:    attempts,
			MinDelay:       r.RetryMinDelay,
			MaxDelay:       r.RetryMaxDelay,
			Multiplier:     r.RetryMultiplier,
			JitterFraction: jitter,
		}
	}
	breakerFor := func(class resilience.Class) circuitbreaker.Config {
		return circuitbreaker.Config{
			Name:        string(class),
			FailMax:     uint32(r.BreakerFailMax),
			Timeout:     r.BreakerTimeout,
			MaxRequests: 1,
		}
	}

	return resilience.Policies{
		Generation: resilience.Policy{
			Timeout: r.GenerationTimeout,
			Retry:   retryFor(r.GenerationAttempts, 0.1),
			Breaker: breakerFor(resilience.ClassGeneration),
		},
		Retrieval: resilience.Policy{
			Timeout: r.RetrievalTimeout,
			Retry:   retryFor(r.RetrievalAttempts, 0.1),
			Breaker: breakerFor(resilience.ClassRetrieval),
		},
		CaseSearch: resilience.Policy{
			Timeout: r.CaseSearchTimeout,
			// Extra jitter decorrelates retries against upstream quotas.
			Retry:   retryFor(r.CaseSearchAttempts, 0.2),
			Breaker: breakerFor(resilience.ClassCaseSearch),
		},
		Generic: resilience.Policy{
			Timeout: r.GenericTimeout,
			Retry:   retryFor(retry.DefaultConfig().MaxAttempts, 0.1),
			Breaker: breakerFor(resilience.ClassGeneric),
		},
	}
}

// CacheServiceConfig maps onto the cache package configuration.
func (c *GatewayConfig) CacheServiceConfig() cache.Config {
	return cache.Config{
		Addr:       c.Cache.Addr,
		Password:   c.Cache.Password,
		DB:         c.Cache.DB,
		KeyPrefix:  c.Cache.KeyPrefix,
		DefaultTTL: c.Cache.DefaultTTL,
		OpTimeout:  c.Cache.OpTimeout,
	}
}

// RetrievalClientConfig maps onto the retrieval client configuration.
func (c *GatewayConfig) RetrievalClientConfig() retrieval.Config {
	return retrieval.Config{
		BaseURL:     c.Retrieval.BaseURL,
		APIKey:      c.Retrieval.APIKey,
		HTTPTimeout: c.Retrieval.HTTPTimeout,
	}
}

// CaseLawClientConfig maps onto the case-law client configuration.
func (c *GatewayConfig) CaseLawClientConfig() caselaw.Config {
	return caselaw.Config{
		BaseURL:           c.CaseLaw.BaseURL,
		APIKey:            c.CaseLaw.APIKey,
		HTTPTimeout:       c.CaseLaw.HTTPTimeout,
		RequestsPerSecond: c.CaseLaw.RequestsPerSecond,
		Burst:             c.CaseLaw.Burst,
	}
}

// GenerationFactoryConfig maps onto the generation provider factory.
func (c *GatewayConfig) GenerationFactoryConfig() generation.Config {
	return generation.Config{
		Provider: c.Generation.Provider,
		OpenAI: generation.OpenAIConfig{
			APIKey:  c.Generation.OpenAIAPIKey,
			BaseURL: c.Generation.OpenAIBaseURL,
			Model:   c.Generation.OpenAIModel,
		},
		Claude: generation.ClaudeConfig{
			APIKey: c.Generation.AnthropicAPIKey,
			Model:  c.Generation.ClaudeModel,
		},
	}
}

// RouterServiceConfig maps onto the query router configuration.
func (c *GatewayConfig) RouterServiceConfig() query.Config {
	return query.Config{
		SourceTTL:        c.Router.SourceTTL,
		AnswerTTL:        c.Router.AnswerTTL,
		MaxContextChars:  c.Router.MaxContextChars,
		DefaultTopK:      c.Router.TopK,
		DefaultCaseLimit: c.Router.CaseLimit,
		CaseInstance:     c.Router.CaseInstance,
		MaxTokens:        c.Router.MaxTokens,
		Temperature:      float32(c.Router.Temperature),
	}
}
