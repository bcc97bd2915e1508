package indexer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitQueued(t *testing.T, g *Gate, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.queued() == n }, time.Second, time.Millisecond)
}

func TestGateFIFO(t *testing.T) {
	g := NewGate(0)
	ctx := context.Background()

	release, err := g.Acquire(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = g.Do(ctx, func() error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}(i)
		waitQueued(t, g, i+1)
	}

	release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestGateSpacing(t *testing.T) {
	interval := 40 * time.Millisecond
	g := NewGate(interval)
	ctx := context.Background()

	var starts []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Do(ctx, func() error {
			starts = append(starts, time.Now())
			return nil
		}))
	}

	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, interval, "gap %d", i)
	}
}

func TestGateCancelledWaiterLeavesQueue(t *testing.T) {
	g := NewGate(0)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.Acquire(ctx)
		errCh <- err
	}()
	waitQueued(t, g, 1)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, g.queued())

	release()

	// gate is free again
	r2, err := g.Acquire(context.Background())
	require.NoError(t, err)
	r2()
}

func TestGateReleaseIsIdempotent(t *testing.T) {
	g := NewGate(0)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	r, err := g.Acquire(context.Background())
	require.NoError(t, err)
	r()
}

func TestKeyedGateSharesPerKey(t *testing.T) {
	k := NewKeyedGate(time.Second)
	assert.Same(t, k.Get(1), k.Get(1))
	assert.NotSame(t, k.Get(1), k.Get(2))
}
