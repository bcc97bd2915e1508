package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Event is one recorded download lifecycle transition
type Event struct {
	ID         int64     `json:"id"`
	DownloadID string    `json:"download_id"`
	TargetKey  string    `json:"target_key"`
	Event      string    `json:"event"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists events
type Store interface {
	Insert(ctx context.Context, event Event) error
	ListForDownload(ctx context.Context, downloadID string) ([]Event, error)
}

// Notifier delivers events to an outside party
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Sink records every event and forwards it to the notifier without blocking the caller.
// Failures are logged and never propagated.
type Sink struct {
	store    Store
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewSink creates an activity sink. notifier may be nil.
func NewSink(store Store, notifier Notifier, logger *zap.Logger) *Sink {
	return &Sink{
		store:    store,
		notifier: notifier,
		timeout:  30 * time.Second,
		logger:   logger.With(zap.String("component", "activity")),
	}
}

// Record stores an event and fires the notification
func (s *Sink) Record(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if s.store != nil {
		if err := s.store.Insert(ctx, event); err != nil {
			s.logger.Warn("failed to record activity",
				zap.String("download_id", event.DownloadID),
				zap.String("event", event.Event),
				zap.Error(err))
		}
	}

	if s.notifier == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.notifier.Notify(nctx, event); err != nil {
			s.logger.Warn("notification failed",
				zap.String("download_id", event.DownloadID),
				zap.String("event", event.Event),
				zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight notifications finish
func (s *Sink) Wait() {
	s.wg.Wait()
}

// History returns the recorded events of a download
func (s *Sink) History(ctx context.Context, downloadID string) ([]Event, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListForDownload(ctx, downloadID)
}

// PGStore keeps events in the activity_log table
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates an activity store
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, event Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO activity_log (download_id, target_key, event, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.DownloadID, event.TargetKey, event.Event, event.Message, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (s *PGStore) ListForDownload(ctx context.Context, downloadID string) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, download_id, target_key, event, message, created_at
		FROM activity_log
		WHERE download_id = $1
		ORDER BY created_at ASC, id ASC
	`, downloadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.DownloadID, &e.TargetKey, &e.Event, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MemoryStore keeps events in memory
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryStore) Insert(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) ListForDownload(_ context.Context, downloadID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.DownloadID == downloadID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every stored event
func (m *MemoryStore) All() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
