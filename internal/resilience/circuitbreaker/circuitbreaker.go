// Package circuitbreaker provides named circuit breakers for external
// dependency calls, built on github.com/sony/gobreaker. A breaker trips
// after a run of consecutive failures, rejects calls while open, and
// lets a single probe through once its cooldown elapses.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"lexgate/internal/resilience/errdefs"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the breaker in logs, metrics and health output.
	Name string

	// FailMax is the number of consecutive countable failures that
	// trips the breaker from closed to open.
	FailMax uint32

	// Timeout is how long the breaker stays open before allowing a
	// half-open probe.
	Timeout time.Duration

	// MaxRequests is the number of probe calls permitted in the
	// half-open state. One probe at a time matches the upstream
	// services' recovery behavior.
	MaxRequests uint32
}

// DefaultConfig returns the default breaker configuration: five
// consecutive failures to trip, sixty seconds before a single probe.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		FailMax:     5,
		Timeout:     60 * time.Second,
		MaxRequests: 1,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker and normalizes its
// rejection errors to errdefs.ErrCircuitOpen.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailMax
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs fn through the circuit breaker. While the breaker is
// open (or a half-open probe is already in flight) the call is rejected
// with errdefs.ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	result, err := cb.breaker.Execute(fn)
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrCircuitOpen, cb.name)
	}
	return result, err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
