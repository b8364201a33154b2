// Package errdefs defines the error taxonomy shared by the resilience
// layer and the collaborator clients. Errors are classified as transient
// (worth retrying, counted by circuit breakers) or terminal (caller
// mistakes, propagated immediately and never counted).
package errdefs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Sentinel errors for the resilience layer.
var (
	// ErrTransient marks a dependency failure that is expected to resolve
	// on retry (connection reset, upstream overload, and similar).
	ErrTransient = errors.New("transient dependency failure")

	// ErrTerminal marks a caller mistake (malformed input, rejected
	// request). Terminal errors are never retried and never counted by
	// circuit breakers.
	ErrTerminal = errors.New("terminal request error")

	// ErrTimeoutExceeded is raised by the timeout guard when an operation
	// does not complete within its deadline. It counts as transient.
	ErrTimeoutExceeded = errors.New("operation timed out")

	// ErrCircuitOpen is raised when a circuit breaker rejects a call
	// without attempting it. It is distinguishable from a real dependency
	// failure so callers can skip the source instead of failing the
	// request.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// HTTPError represents an HTTP error response from a collaborator.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether err represents a dependency failure that is
// eligible for retry and counted by circuit breakers.
//
// Transient errors:
//   - ErrTransient and ErrTimeoutExceeded sentinels (and wrapped forms)
//   - network timeouts (net.Error with Timeout() == true)
//   - connection-level syscall errors (refused, reset, unreachable)
//   - HTTP 5xx, 429 and 408 responses
//
// Context cancellation is not transient: the caller gave up, retrying
// would only waste the dependency's time.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTerminal) {
		return false
	}

	if errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeoutExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if httpErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// Terminal reports whether err represents a caller mistake that must
// propagate immediately. Terminal errors are tunnelled around circuit
// breakers so caller input cannot pollute failure counts.
func Terminal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTerminal) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		// 408 and 429 are transient; every other 4xx is the caller's fault.
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
			httpErr.StatusCode != http.StatusRequestTimeout &&
			httpErr.StatusCode != http.StatusTooManyRequests
	}

	return false
}
