package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetOrder(t *testing.T) {
	q := New[int](10)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, "a", 1))
	require.NoError(t, q.Put(ctx, "b", 2))

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestReplaceInPlaceKeepsPosition(t *testing.T) {
	q := New[int](10)
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, "a", 1))
	require.NoError(t, q.Put(ctx, "b", 2))
	// Replace "a" before it is consumed: position unchanged, payload replaced.
	require.NoError(t, q.Put(ctx, "a", 99))

	assert.Equal(t, 2, q.QSize())

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99, v, "first-published key still comes first, with the latest payload")

	v, err = q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestBurstOfPutsCollapsesToOnePendingEntry(t *testing.T) {
	q := New[int](100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = q.Put(ctx, "c", n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, q.QSize())

	_, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, q.QSize())
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := New[int](1)
	ctx := context.Background()

	done := make(chan int, 1)
	go func() {
		v, err := q.Get(ctx)
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(ctx, "x", 7))

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("Get never returned")
	}
}

func TestPutBlocksForBackpressureThenCancel(t *testing.T) {
	q := New[int](1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "a", 1))

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Put(cctx, "b", 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.QSize(), "cancelled put for a new key must not leave a dangling entry")
}

func TestCancelledPutDoesNotStrandALaterRepublish(t *testing.T) {
	q := New[int](1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "a", 1))

	// First publisher for "b" blocks on the full channel, then gets
	// cancelled. Its rollback must leave the queue exactly as it found
	// it, so a later publish of "b" is a fresh first publish that gets
	// its own channel slot, not a replace riding a revoked reservation.
	cctx, cancel := context.WithCancel(context.Background())
	blocked := make(chan error, 1)
	go func() { blocked <- q.Put(cctx, "b", 2) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-blocked, context.Canceled)

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, q.Put(ctx, "b", 3))
	v, err = q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v, "the republished payload must be deliverable")
	assert.Equal(t, 0, q.QSize())
}
