package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// settingPrefixes are the config namespaces the acquisition core reads
var settingPrefixes = []string{"downloads.", "library."}

// ConfigHandler exposes the runtime settings kept in the config table
type ConfigHandler struct {
	store  *configstore.Store
	logger *zap.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(store *configstore.Store, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		store:  store,
		logger: logger.With(zap.String("component", "config-handler")),
	}
}

func knownSetting(key string) bool {
	for _, p := range settingPrefixes {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return true
		}
	}
	return false
}

// ListConfig handles GET /api/config
func (h *ConfigHandler) ListConfig(w http.ResponseWriter, r *http.Request) {
	settings := make(map[string]json.RawMessage)
	for _, prefix := range settingPrefixes {
		values, err := h.store.GetByPrefix(r.Context(), prefix)
		if err != nil {
			httputil.LogError(h.logger, err, "failed to list config", zap.String("prefix", prefix))
			httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to list config")
			return
		}
		for k, v := range values {
			settings[k] = v
		}
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"keys":     keys,
		"settings": settings,
	})
}

// GetConfig handles GET /api/config/{key}
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !knownSetting(key) {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "unknown setting")
		return
	}

	value, err := h.store.Get(r.Context(), key)
	if errors.Is(err, configstore.ErrNotFound) {
		httputil.RespondErrorMessage(w, http.StatusNotFound, "setting not set")
		return
	}
	if err != nil {
		httputil.LogError(h.logger, err, "failed to get config", zap.String("key", key))
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to get config")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

// SetConfig handles PUT /api/config/{key} with {"value": ...}
func (h *ConfigHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !knownSetting(key) {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "unknown setting")
		return
	}

	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}
	if len(body.Value) == 0 {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := h.store.Set(r.Context(), key, body.Value); err != nil {
		httputil.LogError(h.logger, err, "failed to set config", zap.String("key", key))
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to set config")
		return
	}
	h.logger.Info("setting changed", zap.String("key", key))

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": body.Value,
	})
}

// DeleteConfig handles DELETE /api/config/{key}, restoring the built-in default
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !knownSetting(key) {
		httputil.RespondErrorMessage(w, http.StatusBadRequest, "unknown setting")
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		httputil.LogError(h.logger, err, "failed to delete config", zap.String("key", key))
		httputil.RespondErrorMessage(w, http.StatusInternalServerError, "failed to delete config")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
