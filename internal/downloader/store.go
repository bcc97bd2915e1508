package downloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists Downloads
type Store interface {
	Create(ctx context.Context, d *Download) error
	Get(ctx context.Context, id string) (*Download, error)
	List(ctx context.Context, statuses ...Status) ([]Download, error)
	ActiveForTarget(ctx context.Context, targetKey string) (*Download, error)
	Update(ctx context.Context, d *Download) error
	Delete(ctx context.Context, id string) error
	DeleteTerminal(ctx context.Context) (int64, error)
}

// PGStore keeps Downloads in postgres. The partial unique index on target_key
// backs the one-active-download rule.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a download store
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const downloadColumns = `
	id, media_type, movie_id, series_id, season, episode, title, status, progress,
	download_url, external_id, client_id, protocol, size, indexer, quality,
	error_message, created_at, updated_at, completed_at`

func targetColumns(t media.Target) (movieID, seriesID *int64, season, episode *int) {
	switch t.MediaType {
	case media.MediaTypeMovie:
		movieID = &t.MovieID
	case media.MediaTypeEpisode:
		seriesID = &t.SeriesID
		season = &t.Season
		episode = &t.Episode
	}
	return
}

// Create inserts a new Download
func (s *PGStore) Create(ctx context.Context, d *Download) error {
	movieID, seriesID, season, episode := targetColumns(d.Target)
	err := s.db.QueryRow(ctx, `
		INSERT INTO downloads (
			id, target_key, media_type, movie_id, series_id, season, episode, title,
			status, progress, download_url, external_id, client_id, protocol, size,
			indexer, quality, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`,
		d.ID, d.Target.Key(), d.Target.MediaType, movieID, seriesID, season, episode, d.Title,
		d.Status, d.Progress, d.DownloadURL, d.ExternalID, d.ClientID, d.Protocol, d.Size,
		d.Indexer, d.Quality, d.ErrorMessage,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveDownloadExists
		}
		return fmt.Errorf("failed to create download: %w", err)
	}
	return nil
}

// Get loads one Download
func (s *PGStore) Get(ctx context.Context, id string) (*Download, error) {
	row := s.db.QueryRow(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE id = $1`, id)
	d, err := scanDownload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return d, nil
}

// List returns Downloads in the given statuses, newest first. No statuses means all.
func (s *PGStore) List(ctx context.Context, statuses ...Status) ([]Download, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, names)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var downloads []Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, *d)
	}
	return downloads, rows.Err()
}

// ActiveForTarget returns the non-terminal Download of a target or ErrNotFound
func (s *PGStore) ActiveForTarget(ctx context.Context, targetKey string) (*Download, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+downloadColumns+`
		FROM downloads
		WHERE target_key = $1 AND status IN ('queued', 'downloading', 'importing')
		LIMIT 1
	`, targetKey)
	d, err := scanDownload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check active download: %w", err)
	}
	return d, nil
}

// Update saves the mutable fields of a Download
func (s *PGStore) Update(ctx context.Context, d *Download) error {
	err := s.db.QueryRow(ctx, `
		UPDATE downloads
		SET status = $2,
		    progress = $3,
		    external_id = $4,
		    client_id = $5,
		    size = $6,
		    quality = $7,
		    error_message = $8,
		    completed_at = $9,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.Status, d.Progress, d.ExternalID, d.ClientID, d.Size, d.Quality, d.ErrorMessage, d.CompletedAt).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update download %s: %w", d.ID, err)
	}
	return nil
}

// Delete removes a Download
func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM downloads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTerminal removes every completed or failed Download
func (s *PGStore) DeleteTerminal(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM downloads WHERE status IN ('completed', 'failed')`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear downloads: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDownload(row pgx.Row) (*Download, error) {
	var d Download
	var movieID, seriesID *int64
	var season, episode *int
	err := row.Scan(
		&d.ID, &d.Target.MediaType, &movieID, &seriesID, &season, &episode, &d.Title, &d.Status, &d.Progress,
		&d.DownloadURL, &d.ExternalID, &d.ClientID, &d.Protocol, &d.Size, &d.Indexer, &d.Quality,
		&d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if movieID != nil {
		d.Target.MovieID = *movieID
	}
	if seriesID != nil {
		d.Target.SeriesID = *seriesID
	}
	if season != nil {
		d.Target.Season = *season
	}
	if episode != nil {
		d.Target.Episode = *episode
	}
	return &d, nil
}

// MemoryStore keeps Downloads in memory and enforces the one-active-download rule itself
type MemoryStore struct {
	mu        sync.Mutex
	downloads map[string]Download
	seq       int
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		downloads: make(map[string]Download),
		now:       time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, d *Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !d.Status.Terminal() {
		for _, existing := range m.downloads {
			if !existing.Status.Terminal() && existing.Target.Key() == d.Target.Key() {
				return ErrActiveDownloadExists
			}
		}
	}
	if _, ok := m.downloads[d.ID]; ok {
		return fmt.Errorf("download %s already exists", d.ID)
	}

	// creation order breaks ties between equal timestamps
	m.seq++
	d.CreatedAt = m.now().Add(time.Duration(m.seq))
	d.UpdatedAt = d.CreatedAt
	m.downloads[d.ID] = *d
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.downloads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) List(_ context.Context, statuses ...Status) ([]Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Download
	for _, d := range m.downloads {
		if len(statuses) == 0 || hasStatus(statuses, d.Status) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ActiveForTarget(_ context.Context, targetKey string) (*Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.downloads {
		if !d.Status.Terminal() && d.Target.Key() == targetKey {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Update(_ context.Context, d *Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.downloads[d.ID]; !ok {
		return ErrNotFound
	}
	d.UpdatedAt = m.now()
	m.downloads[d.ID] = *d
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.downloads[id]; !ok {
		return ErrNotFound
	}
	delete(m.downloads, id)
	return nil
}

func (m *MemoryStore) DeleteTerminal(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, d := range m.downloads {
		if d.Status.Terminal() {
			delete(m.downloads, id)
			n++
		}
	}
	return n, nil
}

func hasStatus(statuses []Status, s Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
