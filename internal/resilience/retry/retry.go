// Package retry provides bounded retry with exponential backoff and
// jitter. Only errors classified as transient are retried; everything
// else propagates immediately without consuming further attempts.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"lexgate/internal/resilience/errdefs"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// MinDelay is the delay before the second attempt.
	MinDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64

	// JitterFraction is the fraction of the computed delay added as
	// random jitter (0.0 to 1.0) to avoid synchronized retry storms.
	JitterFraction float64
}

// DefaultConfig returns the retry configuration for generic calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		MinDelay:       1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// GenerationConfig returns the retry configuration for LLM generation
// calls. Few attempts: generation is slow and billed per token.
func GenerationConfig() Config {
	return Config{
		MaxAttempts:    2,
		MinDelay:       2 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// RetrievalConfig returns the retry configuration for document
// retrieval calls.
func RetrievalConfig() Config {
	return Config{
		MaxAttempts:    3,
		MinDelay:       500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// CaseSearchConfig returns the retry configuration for the external
// case-search service. A slightly larger budget tolerates upstream
// rate limiting.
func CaseSearchConfig() Config {
	return Config{
		MaxAttempts:    4,
		MinDelay:       1 * time.Second,
		MaxDelay:       15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// WithBackoff executes fn up to cfg.MaxAttempts times. The delay before
// attempt k (k >= 2) is min(MaxDelay, MinDelay * Multiplier^(k-2)) plus
// jitter. Attempts are strictly sequential. Retry happens only when the
// prior attempt returned a transient error (errdefs.Transient); any
// other error propagates unchanged. If all attempts fail, the last
// error propagates wrapped with the attempt count.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	delay := cfg.MinDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !errdefs.Transient(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(addJitter(delay, cfg.JitterFraction)):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- math/rand is fine for backoff jitter; cryptographic
	// randomness is not required.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
