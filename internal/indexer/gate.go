package indexer

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Gate is a FIFO mutual-exclusion token with minimum spacing. A holder is only
// resumed once interval has elapsed since the previous holder released it.
type Gate struct {
	interval time.Duration
	now      func() time.Time

	mu          sync.Mutex
	held        bool
	lastRelease time.Time
	waiters     []chan struct{}
}

// NewGate creates a gate enforcing interval between consecutive holders
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval, now: time.Now}
}

// Do runs fn while holding the gate
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Acquire blocks until the caller owns the gate. The returned func releases it
// and may be called more than once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	g.mu.Lock()
	if !g.held && len(g.waiters) == 0 {
		g.held = true
		g.mu.Unlock()
	} else {
		ch := make(chan struct{})
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			g.mu.Lock()
			if idx := slices.Index(g.waiters, ch); idx >= 0 {
				g.waiters = slices.Delete(g.waiters, idx, idx+1)
				g.mu.Unlock()
				return nil, ctx.Err()
			}
			g.mu.Unlock()
			// ownership arrived while cancelling, pass it on
			g.handoff(false)
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	wait := g.interval - g.now().Sub(g.lastRelease)
	g.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			g.handoff(false)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.handoff(true) })
	}, nil
}

// handoff passes ownership to the oldest waiter, or frees the gate
func (g *Gate) handoff(stamp bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if stamp {
		g.lastRelease = g.now()
	}
	if len(g.waiters) == 0 {
		g.held = false
		return
	}
	next := g.waiters[0]
	g.waiters = g.waiters[1:]
	close(next)
}

// queued returns the number of waiters
func (g *Gate) queued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// KeyedGate lazily creates one Gate per key, all with the same interval
type KeyedGate struct {
	interval time.Duration

	mu    sync.Mutex
	gates map[int64]*Gate
}

// NewKeyedGate creates a keyed gate
func NewKeyedGate(interval time.Duration) *KeyedGate {
	return &KeyedGate{interval: interval, gates: make(map[int64]*Gate)}
}

// Get returns the gate for key
func (k *KeyedGate) Get(key int64) *Gate {
	k.mu.Lock()
	defer k.mu.Unlock()

	g, ok := k.gates[key]
	if !ok {
		g = NewGate(k.interval)
		k.gates[key] = g
	}
	return g
}
