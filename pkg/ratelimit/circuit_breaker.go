package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// StateClosed is normal operation.
	StateClosed CircuitState = iota

	// StateOpen means the limiter kept failing. An open circuit lets
	// every request through (fail-open), trading limit strictness for
	// availability of the search API.
	StateOpen

	// StateHalfOpen lets one request test whether the limiter has
	// recovered.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures. Default 10.
	FailureThreshold int

	// RecoveryTimeout is how long to stay open before going half-open.
	// Default 30 seconds.
	RecoveryTimeout time.Duration

	// Clock is injectable for tests. Default SystemClock.
	Clock Clock

	// Metrics records state changes. Default NoOpMetrics.
	Metrics RateLimitMetrics

	// LimiterType names the protected limiter in metrics, "ip" or
	// "user".
	LimiterType string
}

// CircuitBreaker shields the request path from a failing limiter. When
// the limit check itself keeps erroring, rejecting traffic would turn a
// limiter bug into an outage, so the breaker opens and waves requests
// through until the limiter recovers. That makes limiting advisory
// under failure; a deployment that must fail closed needs a different
// breaker.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                  sync.RWMutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time
	lastStateChange     time.Time
}

// NewCircuitBreaker creates a breaker, filling zero config fields with
// the defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}

	cb := &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: config.Clock.Now(),
	}

	config.Metrics.RecordCircuitState(config.LimiterType, cb.state.String())

	return cb
}

// Execute runs the operation under breaker control. Closed executes and
// tracks failures; open skips the operation entirely and returns nil;
// half-open executes once and closes or reopens on the result.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	cb.attemptRecovery()

	cb.mu.RLock()
	currentState := cb.state
	cb.mu.RUnlock()

	switch currentState {
	case StateClosed:
		return cb.executeInClosedState(operation)

	case StateOpen:
		// Fail-open: skip the limiter, let the request through.
		return nil

	case StateHalfOpen:
		return cb.executeInHalfOpenState(operation)

	default:
		return cb.executeInClosedState(operation)
	}
}

func (cb *CircuitBreaker) executeInClosedState(operation func() error) error {
	err := operation()
	if err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) executeInHalfOpenState(operation func() error) error {
	err := operation()
	if err != nil {
		// Recovery test failed, reopen.
		cb.mu.Lock()
		oldState := cb.state
		cb.state = StateOpen
		cb.consecutiveFailures++
		cb.lastFailureTime = cb.config.Clock.Now()
		cb.lastStateChange = cb.config.Clock.Now()
		cb.mu.Unlock()

		cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateOpen.String())

		slog.Warn("circuit breaker state changed",
			slog.String("limiter_type", cb.config.LimiterType),
			slog.String("previous_state", oldState.String()),
			slog.String("new_state", StateOpen.String()),
			slog.Int("consecutive_failures", cb.consecutiveFailures),
			slog.Duration("recovery_timeout", cb.config.RecoveryTimeout),
		)
		return err
	}

	// Recovery test passed, close.
	cb.mu.Lock()
	oldState := cb.state
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.lastStateChange = cb.config.Clock.Now()
	cb.mu.Unlock()

	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateClosed.String())

	slog.Warn("circuit breaker state changed",
		slog.String("limiter_type", cb.config.LimiterType),
		slog.String("previous_state", oldState.String()),
		slog.String("new_state", StateClosed.String()),
		slog.Int("consecutive_failures", 0),
	)
	return nil
}

// Allow reports whether the request may proceed. Every state allows it;
// an open circuit simply means the limit check itself is skipped.
func (cb *CircuitBreaker) Allow() bool {
	cb.attemptRecovery()

	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return true
}

// RecordSuccess resets the consecutive failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.consecutiveFailures > 0 {
		cb.consecutiveFailures = 0
	}
}

// RecordFailure counts a failure and opens the circuit once the
// threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.consecutiveFailures++
	cb.lastFailureTime = cb.config.Clock.Now()

	if cb.consecutiveFailures >= cb.config.FailureThreshold && cb.state == StateClosed {
		cb.state = StateOpen
		cb.lastStateChange = cb.config.Clock.Now()
		cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateOpen.String())

		slog.Warn("circuit breaker state changed",
			slog.String("limiter_type", cb.config.LimiterType),
			slog.String("previous_state", oldState.String()),
			slog.String("new_state", StateOpen.String()),
			slog.Int("consecutive_failures", cb.consecutiveFailures),
			slog.Duration("recovery_timeout", cb.config.RecoveryTimeout),
		)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// IsOpen reports whether the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateOpen
}

// IsClosed reports whether the circuit is closed.
func (cb *CircuitBreaker) IsClosed() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateClosed
}

// IsHalfOpen reports whether the circuit is half-open.
func (cb *CircuitBreaker) IsHalfOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateHalfOpen
}

// Reset forces the breaker back to closed. For tests and manual
// intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.lastFailureTime = time.Time{}
	cb.lastStateChange = cb.config.Clock.Now()

	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateClosed.String())
}

// attemptRecovery moves an open circuit to half-open once the recovery
// timeout has elapsed.
func (cb *CircuitBreaker) attemptRecovery() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return
	}

	now := cb.config.Clock.Now()
	if now.Sub(cb.lastStateChange) >= cb.config.RecoveryTimeout {
		cb.state = StateHalfOpen
		cb.lastStateChange = now
		cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateHalfOpen.String())
	}
}

// CircuitBreakerStats is a snapshot of the breaker for monitoring.
type CircuitBreakerStats struct {
	State               CircuitState
	ConsecutiveFailures int
	LastFailureTime     time.Time
	LastStateChange     time.Time
	TimeSinceLastChange time.Duration
}

// Stats returns the current snapshot.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	now := cb.config.Clock.Now()
	return CircuitBreakerStats{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		LastFailureTime:     cb.lastFailureTime,
		LastStateChange:     cb.lastStateChange,
		TimeSinceLastChange: now.Sub(cb.lastStateChange),
	}
}
