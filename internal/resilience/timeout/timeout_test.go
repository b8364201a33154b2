package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"lexgate/internal/resilience/errdefs"
)

func TestDoCompletesWithinDeadline(t *testing.T) {
	err := Do(context.Background(), 100*time.Millisecond, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestDoPropagatesOperationError(t *testing.T) {
	opErr := errors.New("upstream broke")
	err := Do(context.Background(), 100*time.Millisecond, func(ctx context.Context) error {
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("expected operation error, got %v", err)
	}
}

func TestDoDeadlineExceeded(t *testing.T) {
	started := make(chan struct{})
	err := Do(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	if !errors.Is(err, errdefs.ErrTimeoutExceeded) {
		t.Fatalf("expected ErrTimeoutExceeded, got %v", err)
	}
}

func TestDoCancelsOperationContextOnExpiry(t *testing.T) {
	cancelled := make(chan struct{})
	_ = Do(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled after deadline")
	}
}

func TestDoParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, errdefs.ErrTimeoutExceeded) {
		t.Fatal("parent cancellation must not be reported as a timeout")
	}
}

func TestDoZeroDurationRunsDirectly(t *testing.T) {
	called := false
	err := Do(context.Background(), 0, func(ctx context.Context) error {
		called = true
		if _, hasDeadline := ctx.Deadline(); hasDeadline {
			t.Error("unexpected deadline with disabled guard")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !called {
		t.Fatal("operation was not invoked")
	}
}
