package downloadclient

import (
	"context"
	"testing"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStore struct {
	clients []ClientConfig
}

func (m *memoryStore) ListClients(context.Context) ([]ClientConfig, error) {
	return m.clients, nil
}

func (m *memoryStore) GetClient(_ context.Context, id int64) (*ClientConfig, error) {
	for i := range m.clients {
		if m.clients[i].ID == id {
			c := m.clients[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) CreateClient(_ context.Context, cfg ClientConfig) (*ClientConfig, error) {
	cfg.ID = int64(len(m.clients) + 1)
	m.clients = append(m.clients, cfg)
	return &cfg, nil
}

type recordingClient struct {
	added []AddRequest
}

func (r *recordingClient) Add(_ context.Context, req AddRequest) (*AddResult, error) {
	r.added = append(r.added, req)
	return &AddResult{Success: true, ExternalID: "id"}, nil
}

func (r *recordingClient) ListJobs(context.Context, string) ([]ExternalJob, error) { return nil, nil }

func (r *recordingClient) Remove(context.Context, string, bool) (bool, error) { return true, nil }

func (r *recordingClient) Test(context.Context) (*TestResult, error) {
	return &TestResult{Success: true}, nil
}

func TestManagerSelect(t *testing.T) {
	store := &memoryStore{clients: []ClientConfig{
		{ID: 1, Name: "sab", Type: TypeSABnzbd, Enabled: true},
		{ID: 2, Name: "qb-off", Type: TypeQBittorrent, Enabled: false},
		{ID: 3, Name: "qb", Type: TypeQBittorrent, Enabled: true},
	}}
	m := NewManager(store, time.Second, zap.NewNop())
	ctx := context.Background()

	cfg, err := m.Select(ctx, indexer.ProtocolTorrent, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.ID)

	cfg, err = m.Select(ctx, indexer.ProtocolUsenet, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.ID)

	off := int64(2)
	_, err = m.Select(ctx, indexer.ProtocolTorrent, &off)
	assert.ErrorIs(t, err, ErrNoClientAvailable)

	sab := int64(1)
	_, err = m.Select(ctx, indexer.ProtocolTorrent, &sab)
	assert.ErrorIs(t, err, ErrNoClientAvailable)
}

func TestManagerAddResolvesCategory(t *testing.T) {
	m := NewManager(&memoryStore{}, time.Second, zap.NewNop())
	client := &recordingClient{}
	m.newAdapter = func(ClientConfig) (Client, error) { return client, nil }

	cfg := ClientConfig{ID: 1, Type: TypeQBittorrent, Category: "default", TVCategory: "tv"}
	_, err := m.Add(context.Background(), cfg, media.MediaTypeEpisode, AddRequest{URL: "magnet:?x", Category: "ignored"})
	require.NoError(t, err)
	require.Len(t, client.added, 1)
	assert.Equal(t, "tv", client.added[0].Category)
}

func TestManagerCreateAndTestValidate(t *testing.T) {
	m := NewManager(&memoryStore{}, time.Second, zap.NewNop())

	_, err := m.Create(context.Background(), ClientConfig{Name: "bad", Type: TypeSABnzbd, Host: "h", Port: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.True(t, IsConfigError(err))

	_, err = m.TestConnection(context.Background(), ClientConfig{Type: TypeQBittorrent, Host: "h", Port: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
