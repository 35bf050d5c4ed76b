// Package concurrency provides the bounded-fan-out primitive the three
// detectors use for their per-symbol calls (spec §5: "a configurable
// per-adapter concurrency limit"). The engine's fan-out over the three
// detectors does not use it.
//
// Semaphore is a compare-and-swap spin loop over an active-worker
// counter rather than a buffered-channel token bucket, avoiding a
// channel allocation per permit.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Semaphore bounds how many goroutines may hold a slot concurrently.
type Semaphore struct {
	active int32
	limit  int32
}

// NewSemaphore creates a Semaphore with the given concurrency limit.
// A limit <= 0 is treated as unbounded (limit = 1<<30).
func NewSemaphore(limit int) *Semaphore {
	if limit <= 0 {
		limit = 1 << 30
	}
	return &Semaphore{limit: int32(limit)}
}

// Acquire blocks until a slot is free or ctx is done, matching
// AcquireWorker's spin-and-poll loop.
func (s *Semaphore) Acquire(ctx context.Context) error {
	for {
		current := atomic.LoadInt32(&s.active)
		if current >= s.limit {
			select {
			case <-time.After(time.Millisecond):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if atomic.CompareAndSwapInt32(&s.active, current, current+1) {
			return nil
		}
	}
}

// Release frees a slot acquired via Acquire.
func (s *Semaphore) Release() {
	atomic.AddInt32(&s.active, -1)
}

// Active reports the current number of held slots, for observability.
func (s *Semaphore) Active() int32 {
	return atomic.LoadInt32(&s.active)
}
