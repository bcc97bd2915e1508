package indexer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Opener decrypts sealed credentials
type Opener interface {
	Open(value string) (string, error)
}

// PGStore reads indexers from postgres
type PGStore struct {
	db     *pgxpool.Pool
	opener Opener
}

// NewPGStore creates an indexer store
func NewPGStore(db *pgxpool.Pool, opener Opener) *PGStore {
	return &PGStore{db: db, opener: opener}
}

// ListIndexers returns all indexers ordered by priority
func (s *PGStore) ListIndexers(ctx context.Context) ([]Indexer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, type, base_url, api_key, categories, priority,
		       enable_automatic, enable_interactive, enabled, created_at, updated_at
		FROM indexers
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexers: %w", err)
	}
	defer rows.Close()

	var indexers []Indexer
	for rows.Next() {
		var idx Indexer
		var categories []int32
		if err := rows.Scan(
			&idx.ID, &idx.Name, &idx.Type, &idx.BaseURL, &idx.APIKey, &categories, &idx.Priority,
			&idx.EnableAutomatic, &idx.EnableInteractive, &idx.Enabled, &idx.CreatedAt, &idx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan indexer: %w", err)
		}
		for _, c := range categories {
			idx.Categories = append(idx.Categories, int(c))
		}
		if idx.APIKey, err = s.opener.Open(idx.APIKey); err != nil {
			return nil, fmt.Errorf("failed to open api key of indexer %s: %w", idx.Name, err)
		}
		indexers = append(indexers, idx)
	}

	return indexers, rows.Err()
}
