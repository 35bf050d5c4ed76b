package resilience

import (
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// BreakerConfig configures the per-endpoint circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures is the number of consecutive
	// terminal-or-exhausted failures that opens the breaker.
	ConsecutiveFailures uint32
	// Cooldown is how long the breaker stays OPEN before probing with
	// a single HALF-OPEN call.
	Cooldown time.Duration
}

// DefaultBreakerConfig mirrors spec.md §6.4 defaults
// (CIRCUIT_BREAKER_FAILURES=5, CIRCUIT_BREAKER_COOLDOWN_S=60).
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 5, Cooldown: 60 * time.Second}
}

// breakerManager owns one gobreaker.CircuitBreaker per endpoint name,
// pooling breakers instead of building a fresh one per call site.
type breakerManager struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerManager(config BreakerConfig) *breakerManager {
	return &breakerManager{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (m *breakerManager) get(endpoint string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[endpoint]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1, // single HALF-OPEN probe closes the breaker
		Timeout:     m.config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.config.ConsecutiveFailures
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	m.breakers[endpoint] = b
	return b
}

// State returns the current state of the named endpoint's breaker as
// a human-readable string ("closed", "half-open", "open"), for
// observability only.
func (m *breakerManager) State(endpoint string) string {
	m.mu.Lock()
	b, ok := m.breakers[endpoint]
	m.mu.Unlock()
	if !ok {
		return "closed"
	}
	switch b.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
