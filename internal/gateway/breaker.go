package gateway

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a guarded operation's breaker is open and
// the call fails fast without contacting the upstream.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the circuit breaker's current position
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards one upstream operation. It opens after
// failureThreshold consecutive failures, fails fast while open, and lets a
// single probe through after the cooldown timeout.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	timeout          time.Duration

	state       BreakerState
	failures    int
	lastFailure time.Time

	logger *zap.Logger
	now    func() time.Time
}

// NewCircuitBreaker creates a closed breaker for the named operation
func NewCircuitBreaker(name string, failureThreshold int, timeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		timeout:          timeout,
		state:            BreakerClosed,
		logger:           logger,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. An open breaker moves to
// half-open once the cooldown has elapsed, admitting the next call as a
// probe.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.lastFailure) > b.timeout {
			b.state = BreakerHalfOpen
			b.logger.Info("Circuit breaker half-open", zap.String("operation", b.name))
		} else {
			return ErrCircuitOpen
		}
	}
	return nil
}

// RecordSuccess resets the breaker after a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.logger.Info("Circuit breaker closed", zap.String("operation", b.name))
	}
	b.state = BreakerClosed
	b.failures = 0
}

// RecordFailure counts a failed call; the breaker opens at the threshold or
// on any half-open failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
		if b.state != BreakerOpen {
			b.logger.Warn("Circuit breaker opened",
				zap.String("operation", b.name),
				zap.Int("consecutive_failures", b.failures))
		}
		b.state = BreakerOpen
	}
}

// State returns the breaker's current position.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
