package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"lexgate/internal/resilience/errdefs"
)

func testConfig() Config {
	return Config{
		Name:        "test",
		FailMax:     5,
		Timeout:     50 * time.Millisecond,
		MaxRequests: 1,
	}
}

var errUpstream = errors.New("upstream failed")

func tripBreaker(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, errUpstream
		})
	}
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := New(testConfig())
	tripBreaker(t, cb, 4)

	if cb.IsOpen() {
		t.Fatal("breaker must stay closed below the failure threshold")
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())
	tripBreaker(t, cb, 5)

	if !cb.IsOpen() {
		t.Fatalf("breaker must open after 5 consecutive failures, state %s", cb.State())
	}
}

func TestOpenBreakerRejectsWithoutInvoking(t *testing.T) {
	cb := New(testConfig())
	tripBreaker(t, cb, 5)

	invoked := false
	_, err := cb.Execute(func() (any, error) {
		invoked = true
		return nil, nil
	})

	if invoked {
		t.Fatal("open breaker must not invoke the operation")
	}
	if !errors.Is(err, errdefs.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	cb := New(testConfig())
	tripBreaker(t, cb, 4)

	if _, err := cb.Execute(func() (any, error) { return nil, nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Four more failures: the earlier run must not count.
	tripBreaker(t, cb, 4)
	if cb.IsOpen() {
		t.Fatal("success must reset the consecutive failure count")
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	cb := New(testConfig())
	tripBreaker(t, cb, 5)

	time.Sleep(60 * time.Millisecond)

	result, err := cb.Execute(func() (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("probe should run after cooldown, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected probe result: %v", result)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("successful probe must close the breaker, state %s", cb.State())
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	cb := New(testConfig())
	tripBreaker(t, cb, 5)

	time.Sleep(60 * time.Millisecond)

	_, _ = cb.Execute(func() (any, error) {
		return nil, errUpstream
	})
	if !cb.IsOpen() {
		t.Fatalf("failed probe must reopen the breaker, state %s", cb.State())
	}
}

func TestRegistryReturnsSameBreaker(t *testing.T) {
	reg := NewRegistry()

	first := reg.Get("op.a", testConfig())
	second := reg.Get("op.a", testConfig())
	if first != second {
		t.Fatal("registry must return the same breaker for a name")
	}

	other := reg.Get("op.b", testConfig())
	if other == first {
		t.Fatal("distinct names must get distinct breakers")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Get("op.a", testConfig())
	tripped := reg.Get("op.b", testConfig())
	tripBreaker(t, tripped, 5)

	states := make(map[string]string)
	for _, st := range reg.Snapshot() {
		states[st.Name] = st.State
	}

	if states["op.a"] != gobreaker.StateClosed.String() {
		t.Fatalf("expected op.a closed, got %q", states["op.a"])
	}
	if states["op.b"] != gobreaker.StateOpen.String() {
		t.Fatalf("expected op.b open, got %q", states["op.b"])
	}
}

func TestRegistryReset(t *testing.T) {
	reg := NewRegistry()
	tripped := reg.Get("op.a", testConfig())
	tripBreaker(t, tripped, 5)

	reg.Reset()

	recreated := reg.Get("op.a", testConfig())
	if recreated == tripped {
		t.Fatal("reset must discard existing breakers")
	}
	if recreated.IsOpen() {
		t.Fatal("recreated breaker must start closed")
	}
}
