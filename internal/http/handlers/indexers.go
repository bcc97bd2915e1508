package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/blakestevenson/nimbus-acquire/internal/httputil"
	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IndexerTester probes one indexer
type IndexerTester interface {
	TestIndexer(ctx context.Context, idx indexer.Indexer) error
}

// IndexerHandler lists configured indexers and tests them
type IndexerHandler struct {
	store  indexer.Store
	tester IndexerTester
	logger *zap.Logger
}

// NewIndexerHandler creates a new indexer handler
func NewIndexerHandler(store indexer.Store, tester IndexerTester, logger *zap.Logger) *IndexerHandler {
	return &IndexerHandler{
		store:  store,
		tester: tester,
		logger: logger.With(zap.String("component", "indexer-handler")),
	}
}

// ListIndexers handles GET /api/indexers
func (h *IndexerHandler) ListIndexers(w http.ResponseWriter, r *http.Request) {
	indexers, err := h.store.ListIndexers(r.Context())
	if err != nil {
		httputil.LogError(h.logger, err, "failed to list indexers")
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to list indexers")
		return
	}
	if indexers == nil {
		indexers = []indexer.Indexer{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"indexers": indexers,
		"count":    len(indexers),
	})
}

// TestIndexer handles POST /api/indexers/{id}/test
func (h *IndexerHandler) TestIndexer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "invalid indexer id")
		return
	}

	indexers, err := h.store.ListIndexers(r.Context())
	if err != nil {
		httputil.LogError(h.logger, err, "failed to list indexers")
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to list indexers")
		return
	}

	for _, idx := range indexers {
		if idx.ID != id {
			continue
		}
		if err := h.tester.TestIndexer(r.Context(), idx); err != nil {
			h.logger.Info("indexer test failed", zap.Int64("indexer_id", id), zap.Error(err))
			httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": err.Error()})
			return
		}
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}

	httputil.RespondErrorMessage(w, http.StatusNotFound, "indexer not found")
}
