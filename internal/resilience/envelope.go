package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Config parameterizes a RetryEnvelope. Defaults mirror spec.md §6.4.
type Config struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	BackoffFactor  float64
	MaxDelay       time.Duration
	PerCallTimeout time.Duration
	Jitter         bool
	Classifier     Classifier
	Breaker        BreakerConfig

	// RatePerSecond and Burst bound how often any single endpoint may
	// be attempted, independent of retry/backoff. The gate is always
	// on: New replaces a zero RatePerSecond or Burst with DefaultConfig's
	// values.
	RatePerSecond float64
	Burst         int
}

// DefaultConfig returns RETRY_MAX_ATTEMPTS=3, RETRY_BASE_DELAY_S=2,
// RETRY_BACKOFF_FACTOR=2, with a 10s per-call timeout, a 30s cap on
// any single backoff delay, and jitter on.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		BackoffFactor:  2,
		MaxDelay:       30 * time.Second,
		PerCallTimeout: 10 * time.Second,
		Jitter:         true,
		Classifier:     AlwaysRetryable,
		Breaker:        DefaultBreakerConfig(),
		RatePerSecond:  5,
		Burst:          5,
	}
}

// AlwaysRetryable is a Classifier that never treats an error as
// terminal. Adapters with no distinguishable terminal condition of
// their own can use it as-is.
func AlwaysRetryable(error) Classification { return Retryable }

// Envelope wraps a fallible attempt function with bounded exponential
// backoff and a per-endpoint circuit breaker (§4.3). One Envelope can
// be shared across many endpoints — each gets its own breaker and
// retry state.
type Envelope struct {
	config   Config
	breakers *breakerManager

	mu       sync.Mutex
	randSrc  *rand.Rand
	sleep    func(context.Context, time.Duration) error
	limiters map[string]*rate.Limiter
}

// New creates a RetryEnvelope from config, filling any zero fields
// with DefaultConfig's values.
func New(config Config) *Envelope {
	def := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = def.BackoffFactor
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.PerCallTimeout <= 0 {
		config.PerCallTimeout = def.PerCallTimeout
	}
	if config.Classifier == nil {
		config.Classifier = def.Classifier
	}
	if config.Breaker.ConsecutiveFailures == 0 {
		config.Breaker = def.Breaker
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = def.RatePerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}

	return &Envelope{
		config:   config,
		breakers: newBreakerManager(config.Breaker),
		randSrc:  rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepWithContext,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor lazily creates a token-bucket limiter per endpoint,
// bounding how often that endpoint's adapter may be attempted.
func (e *Envelope) limiterFor(endpoint string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.limiters[endpoint]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(e.config.RatePerSecond), e.config.Burst)
	e.limiters[endpoint] = l
	return l
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BreakerState reports the observability-only breaker state for an
// endpoint ("closed", "half-open", "open").
func (e *Envelope) BreakerState(endpoint string) string {
	return e.breakers.State(endpoint)
}

// Do executes fn under retry + circuit-breaker protection for the
// given endpoint name (the breaker key). It never raises from a
// retryable path before exhaustion; it always raises (typed) after
// exhaustion or a terminal classification; it never swallows errors
// silently.
func (e *Envelope) Do(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	breaker := e.breakers.get(endpoint)

	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, e.runWithRetries(ctx, endpoint, fn)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &CircuitOpen{Endpoint: endpoint}
	}
	return err
}

func (e *Envelope) runWithRetries(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	var lastErr error

	limiter := e.limiterFor(endpoint)

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &AdapterExhausted{Endpoint: endpoint, Attempts: attempt - 1, LastErr: ctxErr}
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return &AdapterExhausted{Endpoint: endpoint, Attempts: attempt - 1, LastErr: waitErr}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.config.PerCallTimeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}

		if e.config.Classifier(err) == Terminal {
			return &AdapterTerminal{Endpoint: endpoint, Err: err}
		}

		lastErr = &AdapterTransient{Endpoint: endpoint, Attempt: attempt, Err: err}

		if attempt == e.config.MaxAttempts {
			break
		}

		delay := e.backoffDelay(attempt)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return &AdapterExhausted{Endpoint: endpoint, Attempts: attempt, LastErr: sleepErr}
		}
	}

	return &AdapterExhausted{Endpoint: endpoint, Attempts: e.config.MaxAttempts, LastErr: lastErr}
}

// backoffDelay computes base * factor^(attempt-1), capped at MaxDelay,
// with optional +/-25% jitter.
func (e *Envelope) backoffDelay(attempt int) time.Duration {
	d := float64(e.config.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= e.config.BackoffFactor
	}
	delay := time.Duration(d)
	if delay > e.config.MaxDelay {
		delay = e.config.MaxDelay
	}

	if e.config.Jitter {
		e.mu.Lock()
		jitterFrac := (e.randSrc.Float64()*2 - 1) * 0.25 // +/-25%
		e.mu.Unlock()
		delay = time.Duration(float64(delay) * (1 + jitterFrac))
		if delay < 0 {
			delay = 0
		}
	}

	if delay > e.config.MaxDelay {
		delay = e.config.MaxDelay
	}
	return delay
}
