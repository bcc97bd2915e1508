package downloader

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/blakestevenson/nimbus-acquire/internal/activity"
	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/blakestevenson/nimbus-acquire/internal/httputil"
	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// History returns the recorded events of a Download
type History interface {
	History(ctx context.Context, downloadID string) ([]activity.Event, error)
}

// Handler provides HTTP handlers for download operations
type Handler struct {
	service   *Service
	scheduler *Scheduler
	history   History
	logger    *zap.Logger
}

// NewHandler creates a new download handler. history may be nil.
func NewHandler(service *Service, scheduler *Scheduler, history History, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		scheduler: scheduler,
		history:   history,
		logger:    logger.With(zap.String("component", "download-handler")),
	}
}

// Routes mounts the download routes
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListDownloads)
	r.Post("/", h.Grab)
	r.Post("/clear", h.Clear)
	r.Post("/poll", h.Poll)
	r.Get("/{id}", h.GetDownload)
	r.Delete("/{id}", h.Cancel)
	r.Get("/{id}/history", h.GetHistory)
}

// SearchRequest asks for the releases of a target
type SearchRequest struct {
	Target     media.Target       `json:"target"`
	SearchType indexer.SearchType `json:"search_type"`
}

// Search runs a release search for a target. Interactive unless asked otherwise.
// POST /api/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.SearchType == "" {
		req.SearchType = indexer.SearchTypeInteractive
	}

	result, err := h.service.FindReleases(r.Context(), req.Target, req.SearchType)
	if err != nil {
		h.respondError(w, err, "Search failed")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// Grab submits a release for a target
// POST /api/downloads
func (h *Handler) Grab(w http.ResponseWriter, r *http.Request) {
	var req GrabRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	d, err := h.service.Grab(r.Context(), req)
	if err != nil {
		h.respondError(w, err, "Failed to grab release")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, d)
}

// ListDownloads lists downloads, optionally filtered by ?status=queued,downloading
// GET /api/downloads
func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	var statuses []Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := Status(strings.TrimSpace(part))
			if !st.Valid() {
				httputil.RespondErrorMessage(w, http.StatusBadRequest, "unknown status: "+part)
				return
			}
			statuses = append(statuses, st)
		}
	}

	downloads, err := h.service.List(r.Context(), statuses...)
	if err != nil {
		h.respondError(w, err, "Failed to list downloads")
		return
	}
	if downloads == nil {
		downloads = []Download{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"downloads": downloads,
		"total":     len(downloads),
	})
}

// GetDownload returns one download
// GET /api/downloads/{id}
func (h *Handler) GetDownload(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err, "Failed to get download")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, d)
}

// GetHistory returns the lifecycle events of a download
// GET /api/downloads/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, err, "Failed to get download")
		return
	}

	var events []activity.Event
	if h.history != nil {
		var err error
		events, err = h.history.History(r.Context(), id)
		if err != nil {
			h.respondError(w, err, "Failed to load history")
			return
		}
	}
	if events == nil {
		events = []activity.Event{}
	}
	httputil.RespondJSON(w, http.StatusOK, events)
}

// Cancel removes a download; ?remove=true also removes the client job, ?delete_files=true its data
// DELETE /api/downloads/{id}
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := CancelRequest{
		RemoveFromClient: q.Get("remove") == "true",
		DeleteFiles:      q.Get("delete_files") == "true",
	}

	if err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		h.respondError(w, err, "Failed to cancel download")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear removes finished downloads
// POST /api/downloads/clear
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Clear(r.Context())
	if err != nil {
		h.respondError(w, err, "Failed to clear downloads")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// Poll runs a reconciliation cycle now
// POST /api/downloads/poll
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	// the cycle outlives a caller that hangs up mid-import
	ran := h.scheduler.RunOnce(context.WithoutCancel(r.Context()))
	status := http.StatusOK
	if !ran {
		status = http.StatusAccepted
	}
	httputil.RespondJSON(w, status, map[string]bool{"ran": ran})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, downloadclient.ErrNotFound), errors.Is(err, media.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err, message)
	case errors.Is(err, ErrActiveDownloadExists):
		httputil.RespondError(w, http.StatusConflict, err, message)
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, indexer.ErrInvalidRequest), downloadclient.IsConfigError(err):
		httputil.RespondError(w, http.StatusBadRequest, err, message)
	case errors.Is(err, downloadclient.ErrNoClientAvailable), errors.Is(err, indexer.ErrNoIndexers):
		httputil.RespondError(w, http.StatusUnprocessableEntity, err, message)
	case errors.Is(err, downloadclient.ErrAddRejected), errors.Is(err, indexer.ErrAllIndexersFailed):
		httputil.RespondError(w, http.StatusBadGateway, err, message)
	default:
		httputil.LogError(h.logger, err, message)
		httputil.RespondError(w, http.StatusInternalServerError, err, message)
	}
}
