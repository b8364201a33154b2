package generation

import (
	"fmt"
	"log/slog"

	"lexgate/internal/usecase/query"
)

// Config selects and configures a generation provider.
type Config struct {
	// Provider is "openai", "claude" or "noop".
	Provider string

	OpenAI OpenAIConfig
	Claude ClaudeConfig
}

// New creates the generator named by cfg.Provider. A provider without
// an API key falls back to the no-op generator with a warning rather
// than failing startup, so the gateway stays usable for development.
func New(cfg Config) (query.Generator, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			slog.Warn("openai api key not set, using noop generator")
			return NewNoOp(), nil
		}
		return NewOpenAI(cfg.OpenAI), nil
	case "claude":
		if cfg.Claude.APIKey == "" {
			slog.Warn("anthropic api key not set, using noop generator")
			return NewNoOp(), nil
		}
		return NewClaude(cfg.Claude), nil
	case "noop", "":
		return NewNoOp(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", cfg.Provider)
	}
}
