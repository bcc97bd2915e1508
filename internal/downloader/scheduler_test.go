package downloader

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingPoller struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (p *blockingPoller) Poll(context.Context) error {
	p.calls.Add(1)
	p.started <- struct{}{}
	<-p.release
	return nil
}

func TestRunOnceSkipsWhileCycleInFlight(t *testing.T) {
	poller := &blockingPoller{started: make(chan struct{}, 1), release: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry())
	s := NewScheduler(poller, time.Hour, m, zap.NewNop())
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- s.RunOnce(ctx) }()
	<-poller.started

	assert.False(t, s.RunOnce(ctx))
	close(poller.release)
	assert.True(t, <-done)

	assert.Equal(t, int32(1), poller.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCycles))
}

type countingPoller struct {
	calls atomic.Int32
}

func (p *countingPoller) Poll(context.Context) error {
	p.calls.Add(1)
	return nil
}

func TestSchedulerStartStop(t *testing.T) {
	poller := &countingPoller{}
	s := NewScheduler(poller, 10*time.Millisecond, nil, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return poller.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := poller.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, poller.calls.Load())
	s.Stop()
}
