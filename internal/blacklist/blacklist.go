package blacklist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/matching"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrInvalidEntry is returned for entries missing a target or release title
var ErrInvalidEntry = errors.New("invalid blacklist entry")

// Entry is a release known to be bad for one target
type Entry struct {
	ID           int64     `json:"id"`
	TargetKey    string    `json:"target_key"`
	ReleaseTitle string    `json:"release_title"`
	Indexer      string    `json:"indexer"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists blacklist entries
type Store interface {
	Add(ctx context.Context, entry Entry) (*Entry, error)
	ListForTarget(ctx context.Context, targetKey string) ([]Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Service records and answers questions about blacklisted releases
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a blacklist service
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With(zap.String("component", "blacklist")),
	}
}

// Add blacklists a release title for a target. Repeats are harmless.
func (s *Service) Add(ctx context.Context, target media.Target, releaseTitle, indexerName, reason string) (*Entry, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if strings.TrimSpace(releaseTitle) == "" {
		return nil, fmt.Errorf("%w: release title is required", ErrInvalidEntry)
	}

	entry, err := s.store.Add(ctx, Entry{
		TargetKey:    target.Key(),
		ReleaseTitle: releaseTitle,
		Indexer:      indexerName,
		Reason:       reason,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("release blacklisted",
		zap.String("target", target.Key()),
		zap.String("release", releaseTitle),
		zap.String("reason", reason))

	return entry, nil
}

// IsBlacklisted reports whether a release title is blacklisted for a target.
// Titles compare after normalization so dotted and spaced forms agree.
func (s *Service) IsBlacklisted(ctx context.Context, target media.Target, releaseTitle string) (bool, error) {
	titles, err := s.titles(ctx, target)
	if err != nil {
		return false, err
	}
	_, ok := titles[matching.Normalize(releaseTitle)]
	return ok, nil
}

// Filter drops blacklisted releases, keeping order
func (s *Service) Filter(ctx context.Context, target media.Target, releases []indexer.Release) ([]indexer.Release, error) {
	titles, err := s.titles(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return releases, nil
	}

	kept := make([]indexer.Release, 0, len(releases))
	for _, r := range releases {
		if _, ok := titles[matching.Normalize(r.Title)]; ok {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

// List returns the most recent entries
func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.List(ctx, limit)
}

func (s *Service) titles(ctx context.Context, target media.Target) (map[string]struct{}, error) {
	entries, err := s.store.ListForTarget(ctx, target.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	titles := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		titles[matching.Normalize(e.ReleaseTitle)] = struct{}{}
	}
	return titles, nil
}

// PGStore keeps entries in postgres
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a blacklist store
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Add inserts an entry. A release already listed for the target keeps its
// first entry, which is returned unchanged.
func (s *PGStore) Add(ctx context.Context, entry Entry) (*Entry, error) {
	var stored Entry
	err := s.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO blacklist (target_key, release_title, indexer, reason)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (target_key, release_title) DO NOTHING
			RETURNING id, target_key, release_title, indexer, reason, created_at
		)
		SELECT id, target_key, release_title, indexer, reason, created_at FROM inserted
		UNION ALL
		SELECT id, target_key, release_title, indexer, reason, created_at
		FROM blacklist
		WHERE target_key = $1 AND release_title = $2
		LIMIT 1
	`, entry.TargetKey, entry.ReleaseTitle, entry.Indexer, entry.Reason).Scan(
		&stored.ID, &stored.TargetKey, &stored.ReleaseTitle, &stored.Indexer, &stored.Reason, &stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blacklist entry: %w", err)
	}
	return &stored, nil
}

// ListForTarget returns every entry for one target
func (s *PGStore) ListForTarget(ctx context.Context, targetKey string) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, target_key, release_title, indexer, reason, created_at
		FROM blacklist
		WHERE target_key = $1
		ORDER BY created_at ASC
	`, targetKey)
}

// List returns the newest entries first
func (s *PGStore) List(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, target_key, release_title, indexer, reason, created_at
		FROM blacklist
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (s *PGStore) query(ctx context.Context, sql string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TargetKey, &e.ReleaseTitle, &e.Indexer, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryStore is an append-only in-memory store. Like PGStore it keeps the
// first entry per target and release title.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Add(_ context.Context, entry Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.TargetKey == entry.TargetKey && e.ReleaseTitle == entry.ReleaseTitle {
			return &e, nil
		}
	}
	entry.ID = int64(len(m.entries) + 1)
	entry.CreatedAt = m.now()
	m.entries = append(m.entries, entry)
	return &entry, nil
}

func (m *MemoryStore) ListForTarget(_ context.Context, targetKey string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.TargetKey == targetKey {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Len reports the number of stored entries
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
