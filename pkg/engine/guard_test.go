package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_AdmitsOncePerPair(t *testing.T) {
	g := NewGuard()

	ctx, release, ok := g.Acquire(context.Background(), "flow-1", "cust-1")
	require.True(t, ok)
	require.NotNil(t, ctx)

	_, _, ok = g.Acquire(context.Background(), "flow-1", "cust-1")
	assert.False(t, ok)

	_, releaseOther, ok := g.Acquire(context.Background(), "flow-2", "cust-1")
	assert.True(t, ok)

	assert.Equal(t, 2, g.InFlight())

	release()
	releaseOther()

	assert.Zero(t, g.InFlight())
	assert.ErrorIs(t, ctx.Err(), context.Canceled, "release ends the traversal context")

	_, release, ok = g.Acquire(context.Background(), "flow-1", "cust-1")
	assert.True(t, ok)
	release()
}

func TestGuard_CancelEndsContext(t *testing.T) {
	g := NewGuard()

	ctx, release, ok := g.Acquire(context.Background(), "flow-1", "cust-1")
	require.True(t, ok)

	defer release()

	assert.True(t, g.Cancel("flow-1", "cust-1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, g.Cancel("flow-1", "cust-2"))

	// Cancelled but unreleased traversals still hold the pair.
	_, _, ok = g.Acquire(context.Background(), "flow-1", "cust-1")
	assert.False(t, ok)
}

func TestGuard_ConcurrentAcquire(t *testing.T) {
	g := NewGuard()

	var (
		admitted atomic.Int32
		wg       sync.WaitGroup
		start    = make(chan struct{})
	)

	for range 64 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			if _, _, ok := g.Acquire(context.Background(), "flow-1", "cust-1"); ok {
				admitted.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}
