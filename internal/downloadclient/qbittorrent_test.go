package downloadclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTorrentAPI struct {
	logins     int
	version    string
	torrents   []qbt.Torrent
	forbidden  int
	addedURL   string
	addedBytes []byte
	options    map[string]string
	deleted    []string
	deleteData bool
}

func (f *fakeTorrentAPI) LoginCtx(context.Context) error {
	f.logins++
	return nil
}

func (f *fakeTorrentAPI) GetWebAPIVersionCtx(context.Context) (string, error) {
	return f.version, nil
}

func (f *fakeTorrentAPI) GetTorrentsCtx(_ context.Context, o qbt.TorrentFilterOptions) ([]qbt.Torrent, error) {
	if f.forbidden > 0 {
		f.forbidden--
		return nil, errors.New("unexpected status: 403 Forbidden")
	}
	var out []qbt.Torrent
	for _, t := range f.torrents {
		if o.Category == "" || t.Category == o.Category {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTorrentAPI) AddTorrentFromUrlCtx(_ context.Context, url string, options map[string]string) error {
	f.addedURL = url
	f.options = options
	return nil
}

func (f *fakeTorrentAPI) AddTorrentFromMemoryCtx(_ context.Context, buf []byte, options map[string]string) error {
	f.addedBytes = buf
	f.options = options
	return nil
}

func (f *fakeTorrentAPI) DeleteTorrentsCtx(_ context.Context, hashes []string, deleteFiles bool) error {
	f.deleted = append(f.deleted, hashes...)
	f.deleteData = deleteFiles
	return nil
}

func newTestQBittorrent(api *fakeTorrentAPI) *QBittorrent {
	cfg := ClientConfig{ID: 3, Name: "qb", Type: TypeQBittorrent, Host: "localhost", Port: 8080, Username: "u", Password: "p"}
	q := NewQBittorrent(cfg, NewSessionStore[torrentAPI](), 5*time.Second, zap.NewNop())
	q.newAPI = func(ClientConfig) torrentAPI { return api }
	return q
}

func TestQBittorrentAddMagnetReturnsInfoHash(t *testing.T) {
	api := &fakeTorrentAPI{}
	q := newTestQBittorrent(api)

	magnet := "magnet:?xt=urn:btih:C12FE1C06BBA254A9DC9F519B335AA7C1367A88A&dn=The.Movie.2024"
	result, err := q.Add(context.Background(), AddRequest{URL: magnet, Title: "The.Movie.2024", Category: "movies"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", result.ExternalID)
	assert.Equal(t, magnet, api.addedURL)
	assert.Equal(t, "movies", api.options["category"])
}

func TestQBittorrentAddFallsBackToURLWhenFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	api := &fakeTorrentAPI{}
	q := newTestQBittorrent(api)

	result, err := q.Add(context.Background(), AddRequest{URL: srv.URL + "/dl/1.torrent", Title: "x"})
	require.NoError(t, err)
	assert.Empty(t, result.ExternalID)
	assert.Equal(t, srv.URL+"/dl/1.torrent", api.addedURL)
	assert.Nil(t, api.addedBytes)
}

func TestQBittorrentAddFollowsMagnetRedirect(t *testing.T) {
	magnet := "magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, magnet, http.StatusFound)
	}))
	defer srv.Close()

	api := &fakeTorrentAPI{}
	q := newTestQBittorrent(api)

	result, err := q.Add(context.Background(), AddRequest{URL: srv.URL + "/dl/2", Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", result.ExternalID)
	assert.Equal(t, magnet, api.addedURL)
}

func TestQBittorrentListJobsRelogsInOnForbidden(t *testing.T) {
	api := &fakeTorrentAPI{
		forbidden: 1,
		torrents: []qbt.Torrent{
			{Hash: "ABC", Name: "The.Movie.2024", Progress: 0.5, State: qbt.TorrentStateDownloading, Category: "movies", SavePath: "/dl"},
			{Hash: "def", Name: "Other", Progress: 1, State: qbt.TorrentStateStalledUp, Category: "tv", ContentPath: "/dl/Other"},
		},
	}
	q := newTestQBittorrent(api)

	jobs, err := q.ListJobs(context.Background(), "movies")
	require.NoError(t, err)
	assert.Equal(t, 2, api.logins)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, "abc", job.ID)
	assert.InDelta(t, 50.0, job.Progress, 0.001)
	assert.Equal(t, JobStateDownloading, job.State)
	assert.Equal(t, "/dl/The.Movie.2024", job.ContentPath)
	assert.Equal(t, int64(3), job.ClientID)
	assert.Equal(t, TypeQBittorrent, job.ClientType)
}

func TestQBittorrentRemove(t *testing.T) {
	api := &fakeTorrentAPI{}
	q := newTestQBittorrent(api)

	removed, err := q.Remove(context.Background(), "ABCDEF", true)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"abcdef"}, api.deleted)
	assert.True(t, api.deleteData)

	removed, err = q.Remove(context.Background(), "", false)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestQBittorrentTestChecksAPIVersion(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"2.9.3", true},
		{"1.2.0", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			q := newTestQBittorrent(&fakeTorrentAPI{version: tt.version})
			result, err := q.Test(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Success)
		})
	}
}

func TestTorrentJobState(t *testing.T) {
	tests := []struct {
		state qbt.TorrentState
		want  JobState
	}{
		{qbt.TorrentStateError, JobStateFailed},
		{qbt.TorrentStateMissingFiles, JobStateFailed},
		{qbt.TorrentStateUploading, JobStateCompleted},
		{qbt.TorrentStatePausedUp, JobStateCompleted},
		{qbt.TorrentStateStoppedUp, JobStateCompleted},
		{qbt.TorrentStateQueuedDl, JobStateQueued},
		{qbt.TorrentStatePausedDl, JobStatePaused},
		{qbt.TorrentStateMetaDl, JobStateDownloading},
		{qbt.TorrentStateStalledDl, JobStateDownloading},
		{qbt.TorrentStateUnknown, JobStateUnknown},
	}
	for _, tt := range tests {
		if got := torrentJobState(tt.state); got != tt.want {
			t.Errorf("torrentJobState(%q) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
