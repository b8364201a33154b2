// Package timeout provides a deadline guard for a single asynchronous
// operation. It cancels the operation's context on expiry and raises a
// distinct error kind so callers can tell a deadline from a dependency
// failure. No retry or circuit-breaking logic lives here.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexgate/internal/resilience/errdefs"
)

// Do runs fn under the deadline d. If fn does not complete within d, its
// context is cancelled and errdefs.ErrTimeoutExceeded is returned; the
// operation's eventual result is discarded. Cancellation is best-effort:
// the underlying network call may continue server-side.
//
// A non-positive d disables the guard and runs fn directly.
func Do(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered so the abandoned goroutine can always deliver and exit.
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("operation exceeded deadline, result discarded",
				slog.Duration("timeout", d))
			return fmt.Errorf("%w after %s", errdefs.ErrTimeoutExceeded, d)
		}
		// Parent context cancelled before the deadline.
		return ctx.Err()
	}
}
