package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/blacklist"
	"github.com/blakestevenson/nimbus-acquire/internal/downloader"
	"github.com/blakestevenson/nimbus-acquire/internal/http/handlers"
	"github.com/blakestevenson/nimbus-acquire/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := downloader.NewService(downloader.Deps{Store: downloader.NewMemoryStore(), Metrics: m}, logger)
	scheduler := downloader.NewScheduler(svc, time.Hour, m, logger)

	return NewRouter(RouterDeps{
		Downloads: downloader.NewHandler(svc, scheduler, nil, logger),
		Blacklist: handlers.NewBlacklistHandler(blacklist.NewService(blacklist.NewMemoryStore(), logger), logger),
		Gatherer:  reg,
	}, logger), m
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsExposesCounters(t *testing.T) {
	router, m := newTestRouter(t)
	m.Transition("failed")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nimbus_download_transitions_total{status="failed"} 1`)
}

func TestManualPollAndBlacklistRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/downloads/poll", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"target":{"media_type":"movie","movie_id":7},"release_title":"Bad.Movie.2024-GRP"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/blacklist", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "manually blacklisted")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/blacklist", strings.NewReader(`{"release_title":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/blacklist", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bad.Movie.2024-GRP")
}
