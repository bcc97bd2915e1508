package downloadclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sealer encrypts credentials at rest
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// Store persists client profiles
type Store interface {
	ListClients(ctx context.Context) ([]ClientConfig, error)
	GetClient(ctx context.Context, id int64) (*ClientConfig, error)
	CreateClient(ctx context.Context, cfg ClientConfig) (*ClientConfig, error)
}

// PGStore keeps client profiles in postgres with sealed credentials
type PGStore struct {
	db     *pgxpool.Pool
	sealer Sealer
}

// NewPGStore creates a client profile store
func NewPGStore(db *pgxpool.Pool, sealer Sealer) *PGStore {
	return &PGStore{db: db, sealer: sealer}
}

const clientColumns = `
	id, name, type, host, port, use_tls, url_base, username, password, api_key,
	category, movie_category, tv_category, remove_on_failure, remove_on_failure_delete_files,
	priority, enabled, created_at, updated_at`

func (s *PGStore) scan(row pgx.Row) (*ClientConfig, error) {
	var c ClientConfig
	if err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.Host, &c.Port, &c.UseTLS, &c.URLBase, &c.Username, &c.Password, &c.APIKey,
		&c.Category, &c.MovieCategory, &c.TVCategory, &c.RemoveOnFailure, &c.RemoveOnFailureDeleteFiles,
		&c.Priority, &c.Enabled, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if c.Password, err = s.sealer.Open(c.Password); err != nil {
		return nil, fmt.Errorf("failed to open password of client %s: %w", c.Name, err)
	}
	if c.APIKey, err = s.sealer.Open(c.APIKey); err != nil {
		return nil, fmt.Errorf("failed to open api key of client %s: %w", c.Name, err)
	}
	return &c, nil
}

// ListClients returns every profile ordered by priority
func (s *PGStore) ListClients(ctx context.Context) ([]ClientConfig, error) {
	rows, err := s.db.Query(ctx, `SELECT `+clientColumns+` FROM download_clients ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query download clients: %w", err)
	}
	defer rows.Close()

	var clients []ClientConfig
	for rows.Next() {
		c, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download client: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// GetClient loads one profile
func (s *PGStore) GetClient(ctx context.Context, id int64) (*ClientConfig, error) {
	c, err := s.scan(s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM download_clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download client %d: %w", id, err)
	}
	return c, nil
}

// CreateClient inserts a profile, sealing its credentials
func (s *PGStore) CreateClient(ctx context.Context, cfg ClientConfig) (*ClientConfig, error) {
	password, err := s.sealer.Seal(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to seal password: %w", err)
	}
	apiKey, err := s.sealer.Seal(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal api key: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO download_clients (
			name, type, host, port, use_tls, url_base, username, password, api_key,
			category, movie_category, tv_category, remove_on_failure, remove_on_failure_delete_files,
			priority, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`,
		cfg.Name, cfg.Type, cfg.Host, cfg.Port, cfg.UseTLS, cfg.URLBase, cfg.Username, password, apiKey,
		cfg.Category, cfg.MovieCategory, cfg.TVCategory, cfg.RemoveOnFailure, cfg.RemoveOnFailureDeleteFiles,
		cfg.Priority, cfg.Enabled,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create download client: %w", err)
	}
	return &cfg, nil
}
