package readiness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsReadyFalseBeforeSetState(t *testing.T) {
	r := New()
	r.Register("search", nil, nil)
	assert.False(t, r.IsReady("search"))
}

func TestIsReadyTrueAfterSetStateReady(t *testing.T) {
	r := New()
	r.Register("search", nil, nil)
	r.SetState("search", StateReady, nil)
	assert.True(t, r.IsReady("search"))
}

func TestIsReadyRequiresDependenciesReady(t *testing.T) {
	r := New()
	r.Register("persistence", nil, nil)
	r.Register("crawl", []string{"persistence"}, nil)

	r.SetState("crawl", StateReady, nil)
	assert.False(t, r.IsReady("crawl"), "crawl is ready but its dependency is not")

	r.SetState("persistence", StateReady, nil)
	assert.True(t, r.IsReady("crawl"))
}

func TestUnknownServiceIsNeverReady(t *testing.T) {
	r := New()
	assert.False(t, r.IsReady("nope"))
}

func TestWaitForReturnsOnceReady(t *testing.T) {
	r := New()
	r.Register("search", nil, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.SetState("search", StateReady, nil)
	}()

	err := r.WaitFor(context.Background(), "search", time.Second)
	require.NoError(t, err)
}

func TestWaitForTimesOut(t *testing.T) {
	r := New()
	r.Register("search", nil, nil)

	err := r.WaitFor(context.Background(), "search", 30*time.Millisecond)
	require.Error(t, err)
}

func TestFailedServiceRetriesHealthCheckAfterBackoff(t *testing.T) {
	r := New()
	attempts := 0
	r.Register("extraction", nil, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("not yet")
		}
		return nil
	})

	r.SetState("extraction", StateFailed, errors.New("boom"))
	assert.False(t, r.IsReady("extraction"))

	// Force the backoff window open for the test instead of sleeping a
	// real minute-scale exponential backoff.
	r.mu.RLock()
	svc := r.services["extraction"]
	r.mu.RUnlock()
	svc.mu.Lock()
	svc.nextRetry = time.Now().Add(-time.Millisecond)
	svc.mu.Unlock()

	assert.False(t, r.IsReady("extraction"), "first retry still fails")

	svc.mu.Lock()
	svc.nextRetry = time.Now().Add(-time.Millisecond)
	svc.mu.Unlock()
	assert.True(t, r.IsReady("extraction"), "second retry succeeds")
}
