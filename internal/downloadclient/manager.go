package downloadclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"go.uber.org/zap"
)

// Manager builds adapters from stored profiles and routes calls to them
type Manager struct {
	store      Store
	sessions   *SessionStore[torrentAPI]
	timeout    time.Duration
	logger     *zap.Logger
	newAdapter func(ClientConfig) (Client, error)
}

// NewManager creates a client manager. Sessions live for the process lifetime.
func NewManager(store Store, timeout time.Duration, logger *zap.Logger) *Manager {
	m := &Manager{
		store:    store,
		sessions: NewSessionStore[torrentAPI](),
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "download-clients")),
	}
	m.newAdapter = m.buildAdapter
	return m
}

func (m *Manager) buildAdapter(cfg ClientConfig) (Client, error) {
	switch cfg.Type {
	case TypeQBittorrent:
		return NewQBittorrent(cfg, m.sessions, m.timeout, m.logger), nil
	case TypeSABnzbd:
		return NewSABnzbd(cfg, m.timeout, m.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown client type %q", ErrInvalidConfig, cfg.Type)
	}
}

// List returns every stored profile
func (m *Manager) List(ctx context.Context) ([]ClientConfig, error) {
	return m.store.ListClients(ctx)
}

// Enabled returns the enabled profiles ordered by priority
func (m *Manager) Enabled(ctx context.Context) ([]ClientConfig, error) {
	all, err := m.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make([]ClientConfig, 0, len(all))
	for _, c := range all {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

// Create validates and stores a new profile
func (m *Manager) Create(ctx context.Context, cfg ClientConfig) (*ClientConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	created, err := m.store.CreateClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m.logger.Info("download client created",
		zap.Int64("client_id", created.ID),
		zap.String("name", created.Name),
		zap.String("type", string(created.Type)))
	return created, nil
}

// Get returns the adapter and profile for a client id
func (m *Manager) Get(ctx context.Context, id int64) (Client, *ClientConfig, error) {
	cfg, err := m.store.GetClient(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := m.newAdapter(*cfg)
	if err != nil {
		return nil, nil, err
	}
	return adapter, cfg, nil
}

// Adapter builds the adapter for an already loaded profile
func (m *Manager) Adapter(cfg ClientConfig) (Client, error) {
	return m.newAdapter(cfg)
}

// Select picks the client a release goes to: the requested one when given,
// otherwise the first enabled client whose back-end speaks the protocol.
func (m *Manager) Select(ctx context.Context, protocol indexer.Protocol, clientID *int64) (*ClientConfig, error) {
	if clientID != nil {
		cfg, err := m.store.GetClient(ctx, *clientID)
		if err != nil {
			return nil, err
		}
		if !cfg.Enabled {
			return nil, fmt.Errorf("%w: client %s is disabled", ErrNoClientAvailable, cfg.Name)
		}
		if protocol != indexer.ProtocolUnknown && cfg.Protocol() != protocol {
			return nil, fmt.Errorf("%w: client %s does not download %s releases", ErrNoClientAvailable, cfg.Name, protocol)
		}
		return cfg, nil
	}

	enabled, err := m.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	for i := range enabled {
		if protocol == indexer.ProtocolUnknown || enabled[i].Protocol() == protocol {
			return &enabled[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoClientAvailable, protocol)
}

// Add submits a release to a selected client, resolving its category for the media type
func (m *Manager) Add(ctx context.Context, cfg ClientConfig, mediaType media.MediaType, req AddRequest) (*AddResult, error) {
	adapter, err := m.newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	req.Category = cfg.ResolveCategory(mediaType, req.Category)

	result, err := adapter.Add(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrAddRejected
	}
	return result, nil
}

// ListJobs lists one client's jobs, or every enabled client's when clientID is nil.
// A failing client is logged and skipped in the all-clients form.
func (m *Manager) ListJobs(ctx context.Context, clientID *int64, category string) ([]ExternalJob, error) {
	if clientID != nil {
		adapter, _, err := m.Get(ctx, *clientID)
		if err != nil {
			return nil, err
		}
		return adapter.ListJobs(ctx, category)
	}

	enabled, err := m.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	var jobs []ExternalJob
	for _, cfg := range enabled {
		adapter, err := m.newAdapter(cfg)
		if err != nil {
			m.logger.Warn("skipping client", zap.Int64("client_id", cfg.ID), zap.Error(err))
			continue
		}
		clientJobs, err := adapter.ListJobs(ctx, category)
		if err != nil {
			m.logger.Warn("failed to list client jobs", zap.Int64("client_id", cfg.ID), zap.Error(err))
			continue
		}
		jobs = append(jobs, clientJobs...)
	}
	return jobs, nil
}

// Remove deletes an external job from a client
func (m *Manager) Remove(ctx context.Context, clientID int64, externalID string, deleteFiles bool) (bool, error) {
	adapter, _, err := m.Get(ctx, clientID)
	if err != nil {
		return false, err
	}
	return adapter.Remove(ctx, externalID, deleteFiles)
}

// TestConnection validates unsaved settings and probes the back-end
func (m *Manager) TestConnection(ctx context.Context, cfg ClientConfig) (*TestResult, error) {
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, err := m.newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	result, err := adapter.Test(ctx)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		m.logger.Info("download client test failed",
			zap.String("host", cfg.Host),
			zap.String("message", result.Message))
	}
	return result, nil
}

// IsConfigError reports whether err stems from unusable settings rather than the back-end
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
