package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is refused because the circuit
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a circuit breaker's position.
type State int

const (
	// StateClosed lets calls through; this is the healthy state.
	StateClosed State = iota
	// StateOpen refuses calls outright until the reset timeout passes.
	StateOpen
	// StateHalfOpen lets a probe call through to test recovery.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
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

// CircuitBreaker fails fast against a dependency that keeps failing,
// instead of letting every indexer worker or readiness probe queue up
// behind the same dead search engine or extraction service. After
// maxFailures consecutive failures the circuit opens; once
// resetTimeout has passed, one probe call is let through, and its
// outcome decides between closing again and reopening.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	state       State
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures open the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithResetTimeout sets how long the circuit stays open before a probe
// call is allowed through.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// NewCircuitBreaker creates a breaker named for the dependency it
// guards. Defaults: 5 failures, 30 second reset timeout.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		state:        StateClosed,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Name returns the name of the dependency this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current position, promoting open to half-open once
// the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState()
}

// currentState reads the state with the open-to-half-open promotion
// applied. Callers hold at least a read lock.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Failures returns the consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Allow reports whether a call should be attempted right now.
func (cb *CircuitBreaker) Allow() bool {
	return cb.State() != StateOpen
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure bumps the consecutive-failure count and opens the
// circuit once it reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// reopen puts a circuit whose probe call failed straight back to open
// and restarts the reset clock.
func (cb *CircuitBreaker) reopen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateOpen
	cb.lastFailure = time.Now()
}

// Execute runs fn through the breaker: ErrCircuitOpen while open, a
// recovery probe while half-open, and failure counting while closed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	_, err := CircuitExecuteWithResult(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	}, nil)
	return err
}

// ExecuteWithResult runs fn through the breaker, answering from
// fallback when the circuit refuses the call (open, or a failed
// half-open probe).
func (cb *CircuitBreaker) ExecuteWithResult(fn func() (string, error), fallback func() (string, error)) (string, error) {
	return CircuitExecuteWithResult(cb, fn, fallback)
}

// CircuitExecuteWithResult is the generic core every execute path runs
// through. A nil fallback turns a refused call into ErrCircuitOpen (for
// an open circuit) or the probe's own error (for a failed half-open
// probe).
func CircuitExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	var zero T

	switch cb.State() {
	case StateOpen:
		if fallback != nil {
			return fallback()
		}
		return zero, ErrCircuitOpen

	case StateHalfOpen:
		result, err := fn()
		if err != nil {
			cb.reopen()
			if fallback != nil {
				return fallback()
			}
			return zero, err
		}
		cb.RecordSuccess()
		return result, nil

	default: // StateClosed
		result, err := fn()
		if err != nil {
			cb.RecordFailure()
			return result, err
		}
		cb.RecordSuccess()
		return result, nil
	}
}
