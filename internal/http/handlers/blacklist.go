package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/blakestevenson/nimbus-acquire/internal/blacklist"
	"github.com/blakestevenson/nimbus-acquire/internal/httputil"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"go.uber.org/zap"
)

// Blacklist is the blacklist surface the handlers use
type Blacklist interface {
	Add(ctx context.Context, target media.Target, releaseTitle, indexerName, reason string) (*blacklist.Entry, error)
	List(ctx context.Context, limit int) ([]blacklist.Entry, error)
}

// BlacklistHandler handles manual blacklist entries
type BlacklistHandler struct {
	blacklist Blacklist
	logger    *zap.Logger
}

// NewBlacklistHandler creates a new blacklist handler
func NewBlacklistHandler(bl Blacklist, logger *zap.Logger) *BlacklistHandler {
	return &BlacklistHandler{
		blacklist: bl,
		logger:    logger.With(zap.String("component", "blacklist-handler")),
	}
}

// AddEntryRequest blacklists a release for a target
type AddEntryRequest struct {
	Target       media.Target `json:"target"`
	ReleaseTitle string       `json:"release_title"`
	Indexer      string       `json:"indexer"`
	Reason       string       `json:"reason"`
}

// ListEntries handles GET /api/blacklist?limit=N
func (h *BlacklistHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid limit")
		return
	}

	entries, err := h.blacklist.List(r.Context(), limit)
	if err != nil {
		httputil.LogError(h.logger, err, "failed to list blacklist")
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to list blacklist")
		return
	}
	if entries == nil {
		entries = []blacklist.Entry{}
	}
	httputil.RespondJSON(w, http.StatusOK, entries)
}

// AddEntry handles POST /api/blacklist
func (h *BlacklistHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req AddEntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "manually blacklisted"
	}

	entry, err := h.blacklist.Add(r.Context(), req.Target, req.ReleaseTitle, req.Indexer, req.Reason)
	if err != nil {
		if errors.Is(err, blacklist.ErrInvalidEntry) {
			httputil.RespondError(w, http.StatusBadRequest, err, "invalid blacklist entry")
			return
		}
		httputil.LogError(h.logger, err, "failed to add blacklist entry")
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to add blacklist entry")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, entry)
}
