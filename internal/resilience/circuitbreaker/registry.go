package circuitbreaker

import (
	"log/slog"
	"sync"
)

// Registry holds named circuit breakers, one per wrapped operation.
// Breakers are created lazily on first use and live for the lifetime of
// the process. The registry is constructed at startup and injected into
// the resilience composer; there is no ambient global lookup.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it with cfg on first use.
// The configuration of an existing breaker is not changed.
func (r *Registry) Get(name string, cfg Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg.Name = name
	cb := New(cfg)
	r.breakers[name] = cb

	slog.Info("created circuit breaker",
		slog.String("circuit", name),
		slog.Int("fail_max", int(cfg.FailMax)),
		slog.Duration("timeout", cfg.Timeout))

	return cb
}

// Status describes one breaker for health reporting.
type Status struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Snapshot returns the current state of every registered breaker,
// ordered by registration-map iteration (callers sort if they need
// stable output).
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.breakers))
	for _, cb := range r.breakers {
		statuses = append(statuses, Status{
			Name:  cb.Name(),
			State: cb.State().String(),
		})
	}
	return statuses
}

// Reset discards every registered breaker. Subsequent calls recreate
// them in the closed state. Intended for tests and administrative
// recovery.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.breakers = make(map[string]*CircuitBreaker)
	slog.Info("all circuit breakers reset")
}
