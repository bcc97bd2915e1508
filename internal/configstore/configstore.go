package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("config key not found")

// Runtime setting keys read by the orchestrator and importer
const (
	KeyAutoImport          = "downloads.auto_import"
	KeyRedownloadOnFailure = "downloads.redownload_on_failure"
	KeyPathOverride        = "downloads.path_override"
	KeyMovieLibraryPath    = "library.movie_path"
	KeyTVLibraryPath       = "library.tv_path"
	KeyRootLibraryPath     = "library.root_path"
)

type backend interface {
	get(ctx context.Context, key string) (json.RawMessage, error)
	set(ctx context.Context, key string, value json.RawMessage) error
	delete(ctx context.Context, key string) error
	all(ctx context.Context) (map[string]json.RawMessage, error)
}

// Store provides type-safe access to the config table
type Store struct {
	backend backend
}

// New creates a config store backed by the config table
func New(db *pgxpool.Pool) *Store {
	return &Store{backend: &pgBackend{db: db}}
}

// NewMemory creates a config store held in memory, used by tests and the CLI dry-run paths
func NewMemory(values map[string]any) *Store {
	m := &memoryBackend{values: make(map[string]json.RawMessage)}
	for k, v := range values {
		raw, _ := json.Marshal(v)
		m.values[k] = raw
	}
	return &Store{backend: m}
}

// Get retrieves a configuration value as raw JSON
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	value, err := s.backend.get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

// Set stores a configuration value
func (s *Store) Set(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal config value: %w", err)
	}

	if err := s.backend.set(ctx, key, jsonValue); err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}

	return nil
}

// Delete removes a configuration value
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete config %s: %w", key, err)
	}
	return nil
}

// GetString retrieves a string configuration value
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("failed to unmarshal string config %s: %w", key, err)
	}

	return value, nil
}

// GetInt retrieves an integer configuration value. JSON floats are truncated.
func (s *Store) GetInt(ctx context.Context, key string) (int, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("failed to unmarshal int config %s: %w", key, err)
	}

	return int(value), nil
}

// GetBool retrieves a boolean configuration value. String encodings such as
// "true" are accepted since the settings UI stores some flags that way.
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}

	var value bool
	if err := json.Unmarshal(raw, &value); err == nil {
		return value, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if b, perr := strconv.ParseBool(strings.TrimSpace(str)); perr == nil {
			return b, nil
		}
	}

	return false, fmt.Errorf("failed to unmarshal bool config %s", key)
}

// GetAll retrieves all configuration values
func (s *Store) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	values, err := s.backend.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all config: %w", err)
	}
	return values, nil
}

// GetByPrefix retrieves all configuration values with a given prefix
func (s *Store) GetByPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]json.RawMessage)
	for k, v := range values {
		if strings.HasPrefix(k, prefix) {
			result[k] = v
		}
	}
	return result, nil
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetOrDefault retrieves a string value or returns a default
func (s *Store) GetOrDefault(ctx context.Context, key, defaultValue string) string {
	value, err := s.GetString(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetIntOrDefault retrieves an integer value or returns a default
func (s *Store) GetIntOrDefault(ctx context.Context, key string, defaultValue int) int {
	value, err := s.GetInt(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetBoolOrDefault retrieves a boolean value or returns a default
func (s *Store) GetBoolOrDefault(ctx context.Context, key string, defaultValue bool) bool {
	value, err := s.GetBool(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParseAndSetFromString parses a string value and stores it
// Attempts to detect the type (int, bool, string)
func (s *Store) ParseAndSetFromString(ctx context.Context, key, valueStr string) error {
	if intVal, err := strconv.Atoi(valueStr); err == nil {
		return s.Set(ctx, key, intVal)
	}

	if boolVal, err := strconv.ParseBool(valueStr); err == nil {
		return s.Set(ctx, key, boolVal)
	}

	return s.Set(ctx, key, valueStr)
}

type pgBackend struct {
	db *pgxpool.Pool
}

func (b *pgBackend) get(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := b.db.QueryRow(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *pgBackend) set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := b.db.Exec(ctx, `
		INSERT INTO config (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = CURRENT_TIMESTAMP
	`, key, []byte(value))
	return err
}

func (b *pgBackend) delete(ctx context.Context, key string) error {
	_, err := b.db.Exec(ctx, `DELETE FROM config WHERE key = $1`, key)
	return err
}

func (b *pgBackend) all(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := b.db.Query(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

type memoryBackend struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func (m *memoryBackend) get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *memoryBackend) set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryBackend) delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memoryBackend) all(_ context.Context) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}
