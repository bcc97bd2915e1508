package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientQueryBuildsNewznabRequest(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(newznabFeed))
	}))
	defer srv.Close()

	c := NewClient(Indexer{Name: "nzb", Type: TypeNewznab, BaseURL: srv.URL + "/", APIKey: "secret", Categories: []int{5000, 5040}}, time.Second)
	releases, err := c.Query(context.Background(), Query{Mode: ModeTVSearch, Q: "Show", Season: 1, Episode: 2})
	require.NoError(t, err)
	require.Len(t, releases, 1)

	got := <-requests
	assert.Equal(t, "/api", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "tvsearch", q.Get("t"))
	assert.Equal(t, "Show", q.Get("q"))
	assert.Equal(t, "1", q.Get("season"))
	assert.Equal(t, "2", q.Get("ep"))
	assert.Equal(t, "5000,5040", q.Get("cat"))
	assert.Equal(t, "secret", q.Get("apikey"))
}

func TestClientNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Indexer{Name: "slow", BaseURL: srv.URL}, time.Second)
	_, err := c.Query(context.Background(), Query{Mode: ModeSearch, Q: "x"})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Indexer{Name: "hang", BaseURL: srv.URL, APIKey: "k3y"}, 20*time.Millisecond)
	_, err := c.Query(context.Background(), Query{Mode: ModeSearch, Q: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "k3y")
}
