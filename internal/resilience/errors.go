// Package resilience wraps fallible external adapter calls with
// bounded exponential backoff and a per-endpoint circuit breaker.
//
// Errors are classified as retryable or terminal by a caller-supplied
// Classifier, and sony/gobreaker is used directly as the breaker engine rather
// than hand-rolling a consecutive-failure state machine.
package resilience

import "fmt"

// Classification tells the envelope whether an error from the attempt
// function should be retried or treated as terminal.
type Classification int

const (
	// Retryable errors (rate-limit, transient IO) are retried up to
	// MaxAttempts with backoff.
	Retryable Classification = iota
	// Terminal errors (validation, auth) are never retried.
	Terminal
)

// Classifier decides Retryable vs Terminal for an error returned by an
// attempt function. Callers supply one per adapter call site.
type Classifier func(error) Classification

// AdapterTransient wraps a retryable error observed on a single
// attempt. It never reaches the caller of Do directly — only
// AdapterExhausted (after retries are spent, wrapping the last
// AdapterTransient), AdapterTerminal, or CircuitOpen do.
type AdapterTransient struct {
	Endpoint string
	Attempt  int
	Err      error
}

func (e *AdapterTransient) Error() string {
	return fmt.Sprintf("%s: transient failure on attempt %d: %v", e.Endpoint, e.Attempt, e.Err)
}

func (e *AdapterTransient) Unwrap() error { return e.Err }

// AdapterTerminal wraps a non-retryable error (auth, malformed
// request/contract violation). It is never retried.
type AdapterTerminal struct {
	Endpoint string
	Err      error
}

func (e *AdapterTerminal) Error() string {
	return fmt.Sprintf("%s: terminal failure: %v", e.Endpoint, e.Err)
}

func (e *AdapterTerminal) Unwrap() error { return e.Err }

// AdapterExhausted is returned when all retry attempts for a
// Retryable-classified error have been spent.
type AdapterExhausted struct {
	Endpoint string
	Attempts int
	LastErr  error
}

func (e *AdapterExhausted) Error() string {
	return fmt.Sprintf("%s: exhausted %d attempts: %v", e.Endpoint, e.Attempts, e.LastErr)
}

func (e *AdapterExhausted) Unwrap() error { return e.LastErr }

// CircuitOpen is returned when a call fails fast because the
// per-endpoint breaker is open. Downstream callers should treat it
// identically to AdapterExhausted (§7).
type CircuitOpen struct {
	Endpoint string
}

func (e *CircuitOpen) Error() string {
	return fmt.Sprintf("%s: circuit breaker is open", e.Endpoint)
}
