package resilience

import (
	"context"
	"time"

	"lexgate/internal/resilience/circuitbreaker"
	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/resilience/retry"
	"lexgate/internal/resilience/timeout"
)

// Class identifies an operation class with its own resilience defaults.
type Class string

// Operation classes. They differ only in default timeout and retry
// bounds.
const (
	// ClassGeneration covers LLM generation calls: long timeout, few
	// retries.
	ClassGeneration Class = "generation"
	// ClassRetrieval covers document retrieval calls: medium timeout.
	ClassRetrieval Class = "retrieval"
	// ClassCaseSearch covers external case-search calls: medium timeout,
	// larger retry budget for upstream rate limiting.
	ClassCaseSearch Class = "case_search"
	// ClassGeneric covers any other outbound call: short timeout.
	ClassGeneric Class = "generic"
)

// Policy bundles the timeout, breaker and retry settings applied to one
// named operation.
type Policy struct {
	Timeout time.Duration
	Retry   retry.Config
	Breaker circuitbreaker.Config
}

// PolicyFor returns the default policy for an operation class.
func PolicyFor(class Class) Policy {
	switch class {
	case ClassGeneration:
		return Policy{
			Timeout: 120 * time.Second,
			Retry:   retry.GenerationConfig(),
			Breaker: circuitbreaker.DefaultConfig(string(class)),
		}
	case ClassRetrieval:
		return Policy{
			Timeout: 60 * time.Second,
			Retry:   retry.RetrievalConfig(),
			Breaker: circuitbreaker.DefaultConfig(string(class)),
		}
	case ClassCaseSearch:
		return Policy{
			Timeout: 45 * time.Second,
			Retry:   retry.CaseSearchConfig(),
			Breaker: circuitbreaker.DefaultConfig(string(class)),
		}
	default:
		return Policy{
			Timeout: 30 * time.Second,
			Retry:   retry.DefaultConfig(),
			Breaker: circuitbreaker.DefaultConfig(string(class)),
		}
	}
}

// Policies holds one policy per operation class, typically built from
// configuration at startup.
type Policies struct {
	Generation Policy
	Retrieval  Policy
	CaseSearch Policy
	Generic    Policy
}

// DefaultPolicies returns the built-in per-class defaults.
func DefaultPolicies() Policies {
	return Policies{
		Generation: PolicyFor(ClassGeneration),
		Retrieval:  PolicyFor(ClassRetrieval),
		CaseSearch: PolicyFor(ClassCaseSearch),
		Generic:    PolicyFor(ClassGeneric),
	}
}

// Composer combines the timeout guard, circuit breaker and retry policy
// into one call wrapper. Execution order is timeout (outermost), then
// circuit breaker, then retry (innermost, closest to the real call), so
// the overall call never exceeds its deadline across retries and
// retries never happen once the breaker has rejected a call.
type Composer struct {
	registry *circuitbreaker.Registry
}

// NewComposer creates a composer backed by the given breaker registry.
func NewComposer(registry *circuitbreaker.Registry) *Composer {
	return &Composer{registry: registry}
}

// Registry exposes the breaker registry for health reporting.
func (c *Composer) Registry() *circuitbreaker.Registry {
	return c.registry
}

// Execute runs op for the named operation under policy p.
//
// The breaker records the terminal outcome of the whole retry sequence.
// Terminal (caller-input) errors are tunnelled around the breaker so
// they propagate without polluting its failure counts.
func (c *Composer) Execute(ctx context.Context, name string, p Policy, op func(ctx context.Context) error) error {
	cb := c.registry.Get(name, p.Breaker)

	return timeout.Do(ctx, p.Timeout, func(ctx context.Context) error {
		var terminal error
		_, err := cb.Execute(func() (any, error) {
			attemptErr := retry.WithBackoff(ctx, p.Retry, func() error {
				return op(ctx)
			})
			if attemptErr != nil && errdefs.Terminal(attemptErr) {
				// Not the dependency's fault: report success to the
				// breaker and hand the error back to the caller.
				terminal = attemptErr
				return nil, nil
			}
			return nil, attemptErr
		})
		if terminal != nil {
			return terminal
		}
		return err
	})
}

// ExecuteStreaming runs setup for a streaming operation through the
// breaker and retry policy, without the timeout guard: the stream
// outlives the setup call, so its deadline is governed by the caller's
// context. Errors after setup are the stream consumer's to observe.
func (c *Composer) ExecuteStreaming(ctx context.Context, name string, p Policy, setup func(ctx context.Context) error) error {
	cb := c.registry.Get(name, p.Breaker)

	var terminal error
	_, err := cb.Execute(func() (any, error) {
		attemptErr := retry.WithBackoff(ctx, p.Retry, func() error {
			return setup(ctx)
		})
		if attemptErr != nil && errdefs.Terminal(attemptErr) {
			terminal = attemptErr
			return nil, nil
		}
		return nil, attemptErr
	})
	if terminal != nil {
		return terminal
	}
	return err
}
