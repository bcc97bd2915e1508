package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/blakestevenson/nimbus-acquire/internal/httputil"
	"go.uber.org/zap"
)

// ClientManager is the download-client surface the handlers use
type ClientManager interface {
	List(ctx context.Context) ([]downloadclient.ClientConfig, error)
	Create(ctx context.Context, cfg downloadclient.ClientConfig) (*downloadclient.ClientConfig, error)
	TestConnection(ctx context.Context, cfg downloadclient.ClientConfig) (*downloadclient.TestResult, error)
	Get(ctx context.Context, id int64) (downloadclient.Client, *downloadclient.ClientConfig, error)
}

// ClientHandler handles download client profiles
type ClientHandler struct {
	manager ClientManager
	logger  *zap.Logger
}

// NewClientHandler creates a new download client handler
func NewClientHandler(manager ClientManager, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		manager: manager,
		logger:  logger.With(zap.String("component", "client-handler")),
	}
}

// redact drops stored credentials from a profile before it leaves the process
func redact(cfg downloadclient.ClientConfig) downloadclient.ClientConfig {
	cfg.Password = ""
	cfg.APIKey = ""
	return cfg
}

// ListClients handles GET /api/download-clients
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.manager.List(r.Context())
	if err != nil {
		httputil.LogError(h.logger, err, "failed to list download clients")
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to list download clients")
		return
	}

	out := make([]downloadclient.ClientConfig, len(clients))
	for i, c := range clients {
		out[i] = redact(c)
	}
	httputil.RespondJSON(w, http.StatusOK, out)
}

// CreateClient handles POST /api/download-clients
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var cfg downloadclient.ClientConfig
	if err := httputil.DecodeJSON(r, &cfg); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}

	created, err := h.manager.Create(r.Context(), cfg)
	if err != nil {
		if downloadclient.IsConfigError(err) {
			httputil.RespondError(w, http.StatusBadRequest, err, "invalid download client")
			return
		}
		httputil.LogError(h.logger, err, "failed to create download client")
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to create download client")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, redact(*created))
}

// testRequest tests either a stored profile by id or unsaved settings
type testRequest struct {
	ID *int64 `json:"id,omitempty"`
	downloadclient.ClientConfig
}

// TestClient handles POST /api/download-clients/test
func (h *ClientHandler) TestClient(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}

	cfg := req.ClientConfig
	if req.ID != nil {
		_, stored, err := h.manager.Get(r.Context(), *req.ID)
		if err != nil {
			if errors.Is(err, downloadclient.ErrNotFound) {
				httputil.RespondError(w, http.StatusNotFound, err, "download client not found")
				return
			}
			httputil.LogError(h.logger, err, "failed to load download client", zap.Int64("client_id", *req.ID))
			httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to load download client")
			return
		}
		cfg = *stored
	}

	result, err := h.manager.TestConnection(r.Context(), cfg)
	if err != nil {
		if downloadclient.IsConfigError(err) {
			httputil.RespondError(w, http.StatusBadRequest, err, "invalid download client")
			return
		}
		httputil.RespondJSON(w, http.StatusOK, downloadclient.TestResult{Success: false, Message: err.Error()})
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
