package circuitbreaker

import (
	"sync"
	"time"
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects one source-chain strategy. A chain asks Allow before
// running the strategy; a skipped strategy counts as a fallthrough, so a
// chronically failing provider stops eating its chain's retry budget. After
// Timeout the breaker half-opens and lets probe attempts through.
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            State
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	strategy         string
	onStateChange    func(from, to State) // optional, for metrics
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Strategy         string
	OnStateChange    func(from, to State)
}

// New creates a new CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		strategy:         cfg.Strategy,
		onStateChange:    cfg.OnStateChange,
	}
}

// Allow reports whether the protected strategy may run now. When the breaker
// is open and the probe timeout has elapsed it transitions to half-open and
// returns true.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return true
	}
	if time.Since(cb.lastFailureTime) < cb.timeout {
		cb.mu.Unlock()
		return false
	}
	cb.state = StateHalfOpen
	cb.successCount = 0
	notify := cb.onStateChange
	cb.mu.Unlock()
	if notify != nil {
		notify(StateOpen, StateHalfOpen)
	}
	return true
}

// RecordSuccess records a successful strategy run, closing a half-open
// breaker once enough probes succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.successCount++
	cb.failureCount = 0
	var from, to State
	notify := false
	if cb.state == StateHalfOpen && cb.successCount >= cb.successThreshold {
		from, to = cb.state, StateClosed
		cb.state = StateClosed
		cb.successCount = 0
		notify = cb.onStateChange != nil
	}
	fn := cb.onStateChange
	cb.mu.Unlock()
	if notify && fn != nil {
		fn(from, to)
	}
}

// RecordFailure records a failed strategy run, opening the breaker when the
// failure threshold is reached or a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.failureCount++
	cb.lastFailureTime = time.Now()
	var from State
	notify := false
	if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
		from = cb.state
		if cb.state != StateOpen {
			notify = cb.onStateChange != nil
		}
		cb.state = StateOpen
		cb.failureCount = 0
	}
	fn := cb.onStateChange
	cb.mu.Unlock()
	if notify && fn != nil {
		fn(from, StateOpen)
	}
}

// State returns the current state (for metrics).
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Strategy returns the name of the protected strategy.
func (cb *CircuitBreaker) Strategy() string {
	return cb.strategy
}
