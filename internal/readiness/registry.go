// Package readiness implements a service-readiness registry: each
// subsystem (persistence, search engine, extraction service, crawl
// manager, …) registers a lifecycle state, optional dependencies, and a
// health-check callback; a failed service gets an exponential-backoff
// retry schedule capped at 5 minutes. It generalizes a one-shot
// "named check, pass/warn/fail status, required flag" startup check
// into a long-lived registry that callers can poll or block on. The
// registry tracks each service's backoff schedule itself; an
// internal/errors.CircuitBreaker per service only makes callers fail
// fast while that service is down.
package readiness

import (
	"context"
	"fmt"
	"sync"
	"time"

	crawlerrors "github.com/Hamza5/file-brain/internal/errors"
)

// State is a service's lifecycle state.
type State string

const (
	StateNotStarted   State = "not_started"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateDisabled     State = "disabled"
)

// maxBackoff caps the retry schedule.
const maxBackoff = 5 * time.Minute

// HealthCheck reports whether a service is currently healthy. It is
// called lazily by IsReady/WaitFor when a service's backoff window has
// elapsed, never on every call.
type HealthCheck func(ctx context.Context) error

// service is one registry entry.
type service struct {
	name    string
	deps    []string
	check   HealthCheck
	cb      *crawlerrors.CircuitBreaker
	backoff time.Duration

	mu        sync.RWMutex
	state     State
	lastErr   error
	nextRetry time.Time
}

// Registry tracks every subsystem's readiness state. Safe for concurrent
// use; constructed once per process and shared by every component that
// needs to ask "can I start yet".
type Registry struct {
	mu       sync.RWMutex
	services map[string]*service
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{services: make(map[string]*service)}
}

// Register adds a service in StateNotStarted with the given dependency
// names (which must already be registered, or ready-checks against them
// will simply report not-ready) and health-check callback. check may be
// nil for services whose readiness is only ever set explicitly via
// SetState (e.g. the crawl manager, which has no independent health
// probe beyond "is it running").
func (r *Registry) Register(name string, deps []string, check HealthCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = &service{
		name:    name,
		deps:    deps,
		check:   check,
		cb:      crawlerrors.NewCircuitBreaker(name, crawlerrors.WithResetTimeout(time.Second)),
		backoff: time.Second,
		state:   StateNotStarted,
	}
}

// SetState forces a service's state, e.g. after an explicit
// initialization attempt completes successfully or fails terminally.
func (r *Registry) SetState(name string, state State, err error) {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.state = state
	svc.lastErr = err
	if state == StateFailed {
		svc.backoff *= 2
		if svc.backoff > maxBackoff {
			svc.backoff = maxBackoff
		}
		svc.nextRetry = time.Now().Add(svc.backoff)
	} else if state == StateReady {
		svc.backoff = time.Second
	}
}

// IsReady reports whether name is ready AND every one of its declared
// dependencies is ready. Unknown service names are never ready.
func (r *Registry) IsReady(name string) bool {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	r.maybeRetry(svc)

	svc.mu.RLock()
	ready := svc.state == StateReady
	deps := append([]string(nil), svc.deps...)
	svc.mu.RUnlock()
	if !ready {
		return false
	}
	for _, dep := range deps {
		if !r.IsReady(dep) {
			return false
		}
	}
	return true
}

// maybeRetry runs a failed service's health check once its backoff
// window has elapsed, promoting it back to ready on success.
func (r *Registry) maybeRetry(svc *service) {
	svc.mu.RLock()
	shouldRetry := svc.state == StateFailed && svc.check != nil && !time.Now().Before(svc.nextRetry)
	check := svc.check
	svc.mu.RUnlock()
	if !shouldRetry {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// The breaker fails fast with ErrCircuitOpen after a run of rapid
	// failures, so a flapping dependency isn't probed on every IsReady
	// call even once the backoff window has elapsed.
	err := svc.cb.Execute(func() error { return check(ctx) })
	if err != nil {
		r.SetState(svc.name, StateFailed, err)
		return
	}
	r.SetState(svc.name, StateReady, nil)
}

// WaitFor blocks until name (and its dependencies) become ready, ctx is
// cancelled, or timeout elapses, whichever comes first.
func (r *Registry) WaitFor(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.IsReady(name) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("readiness: timed out waiting for %q", name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status is a snapshot of one service's readiness, returned by
// Snapshot() for display in the progress/status surface.
type Status struct {
	Name  string
	State State
	Err   error
}

// Snapshot returns the current state of every registered service.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.services))
	for _, svc := range r.services {
		svc.mu.RLock()
		out = append(out, Status{Name: svc.name, State: svc.state, Err: svc.lastErr})
		svc.mu.RUnlock()
	}
	return out
}
