package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned without calling the wrapped function while the
// breaker is cooling down.
var ErrCircuitOpen = eris.New("circuit breaker abierto")

// CircuitBreakerConfig tunes when a breaker trips and how long it rests.
type CircuitBreakerConfig struct {
	// FailureThreshold is the run of consecutive failures that opens the
	// circuit.
	FailureThreshold int

	// Cooldown is how long calls are rejected before a single probe is let
	// through.
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig trips after five straight failures and probes
// again after thirty seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker stops hammering an API that is consistently failing. One
// breaker guards one upstream service.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Open reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.rejecting()
}

func (cb *CircuitBreaker) rejecting() bool {
	if cb.failures < cb.cfg.FailureThreshold {
		return false
	}
	// After the cooldown one probe call is allowed through. A success
	// resets the count, a failure restarts the cooldown.
	return cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.now()
	}
}

// ExecuteVal runs fn through the breaker. While the circuit is open it
// returns ErrCircuitOpen immediately, sparing the per-call timeout.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	cb.mu.Lock()
	if cb.rejecting() {
		cb.mu.Unlock()
		return zero, ErrCircuitOpen
	}
	cb.mu.Unlock()

	val, err := fn(ctx)
	cb.record(err)
	return val, err
}
