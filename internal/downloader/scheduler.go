package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/metrics"
	"go.uber.org/zap"
)

// Poller runs one reconciliation cycle
type Poller interface {
	Poll(ctx context.Context) error
}

// Scheduler drives the poll cycle on a ticker. Ticks that arrive while a cycle
// is still running are dropped, not queued.
type Scheduler struct {
	poller       Poller
	metrics      *metrics.Metrics
	logger       *zap.Logger
	tickInterval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	inFlight atomic.Bool
}

// NewScheduler creates a scheduler. A zero interval means 15 seconds.
func NewScheduler(poller Poller, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Scheduler{
		poller:       poller,
		metrics:      m,
		logger:       logger.With(zap.String("component", "poll-scheduler")),
		tickInterval: interval,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx)

	s.logger.Info("poll scheduler started", zap.Duration("interval", s.tickInterval))
	return nil
}

// Stop stops the scheduler and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a cycle unless one is already in flight, and reports whether it ran
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.PollSkip()
		s.logger.Debug("poll still running, skipping tick")
		return false
	}
	defer s.inFlight.Store(false)

	started := time.Now()
	if err := s.poller.Poll(ctx); err != nil {
		s.logger.Error("poll cycle failed", zap.Error(err))
	}
	s.metrics.PollCycle()
	s.logger.Debug("poll cycle finished", zap.Duration("duration", time.Since(started)))
	return true
}
