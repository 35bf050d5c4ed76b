package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func noJitterEnvelope(config Config) *Envelope {
	config.Jitter = false
	e := New(config)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func TestEnvelope_SucceedsOnFirstAttempt(t *testing.T) {
	e := noJitterEnvelope(Config{MaxAttempts: 3, Classifier: AlwaysRetryable})

	var calls int32
	err := e.Do(context.Background(), "quotes", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestEnvelope_RetriesThenSucceeds(t *testing.T) {
	e := noJitterEnvelope(Config{MaxAttempts: 3, Classifier: AlwaysRetryable})

	var calls int32
	err := e.Do(context.Background(), "quotes", func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestEnvelope_ExhaustsRetryableError(t *testing.T) {
	e := noJitterEnvelope(Config{MaxAttempts: 3, Classifier: AlwaysRetryable, Breaker: BreakerConfig{ConsecutiveFailures: 100, Cooldown: time.Minute}})

	var calls int32
	err := e.Do(context.Background(), "quotes", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("still down")
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	var exhausted *AdapterExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AdapterExhausted, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected Attempts=3, got %d", exhausted.Attempts)
	}
}

func TestEnvelope_TerminalErrorStopsImmediately(t *testing.T) {
	terminalClassifier := func(err error) Classification { return Terminal }
	e := noJitterEnvelope(Config{MaxAttempts: 3, Classifier: terminalClassifier, Breaker: BreakerConfig{ConsecutiveFailures: 100, Cooldown: time.Minute}})

	var calls int32
	err := e.Do(context.Background(), "quotes", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("bad request")
	})
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a terminal error, got %d", calls)
	}
	var terminal *AdapterTerminal
	if !errors.As(err, &terminal) {
		t.Fatalf("expected AdapterTerminal, got %T: %v", err, err)
	}
}

func TestEnvelope_OpensBreakerAfterConsecutiveFailures(t *testing.T) {
	e := noJitterEnvelope(Config{
		MaxAttempts: 1,
		Classifier:  AlwaysRetryable,
		Breaker:     BreakerConfig{ConsecutiveFailures: 2, Cooldown: time.Minute},
	})

	failing := func(ctx context.Context) error { return errors.New("down") }

	for i := 0; i < 2; i++ {
		if err := e.Do(context.Background(), "quotes", failing); err == nil {
			t.Fatalf("expected failure on call %d", i)
		}
	}
	if e.BreakerState("quotes") != "open" {
		t.Fatalf("expected breaker open after 2 consecutive exhausted failures, got %s", e.BreakerState("quotes"))
	}

	var calls int32
	err := e.Do(context.Background(), "quotes", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if calls != 0 {
		t.Fatalf("expected fn not to be invoked while breaker is open, got %d calls", calls)
	}
	var circuitOpen *CircuitOpen
	if !errors.As(err, &circuitOpen) {
		t.Fatalf("expected CircuitOpen, got %T: %v", err, err)
	}
}

func TestEnvelope_BreakerIsolatedPerEndpoint(t *testing.T) {
	e := noJitterEnvelope(Config{
		MaxAttempts: 1,
		Classifier:  AlwaysRetryable,
		Breaker:     BreakerConfig{ConsecutiveFailures: 1, Cooldown: time.Minute},
	})

	_ = e.Do(context.Background(), "news", func(ctx context.Context) error { return errors.New("down") })
	if e.BreakerState("news") != "open" {
		t.Fatalf("expected news breaker open")
	}
	if e.BreakerState("quotes") != "closed" {
		t.Fatalf("expected quotes breaker unaffected by news breaker, got %s", e.BreakerState("quotes"))
	}
}

func TestEnvelope_CancelledContextExhausts(t *testing.T) {
	e := New(Config{MaxAttempts: 3, Classifier: AlwaysRetryable, BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := e.Do(ctx, "quotes", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("down")
	})
	if err == nil {
		t.Fatal("expected an error when context is already cancelled")
	}
	if calls != 0 {
		t.Fatalf("expected no attempts once the context is already cancelled, got %d", calls)
	}
}

func TestEnvelope_RateLimitedEnvelopeAdmitsSingleCall(t *testing.T) {
	e := noJitterEnvelope(Config{MaxAttempts: 2, Classifier: AlwaysRetryable, RatePerSecond: 1000, Burst: 1})

	var calls int32
	err := e.Do(context.Background(), "quotes", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.MaxAttempts)
	}
	if c.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", c.BaseDelay)
	}
	if c.BackoffFactor != 2 {
		t.Errorf("BackoffFactor = %v, want 2", c.BackoffFactor)
	}
	if c.Breaker.ConsecutiveFailures != 5 {
		t.Errorf("Breaker.ConsecutiveFailures = %d, want 5", c.Breaker.ConsecutiveFailures)
	}
	if c.Breaker.Cooldown != 60*time.Second {
		t.Errorf("Breaker.Cooldown = %v, want 60s", c.Breaker.Cooldown)
	}
}
