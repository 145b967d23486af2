package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/manorfm/oauth2server/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// KeySet publishes the token verification keys
type KeySet interface {
	GetJWKS(ctx context.Context) (map[string]any, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health checks and the JWKS document
type SystemHandler struct {
	keys   KeySet
	store  Pinger
	logger *zap.Logger
}

// NewSystemHandler creates a SystemHandler. store may be nil for in-process storage.
func NewSystemHandler(keys KeySet, store Pinger, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{keys: keys, store: store, logger: logger}
}

// HealthHandler answers liveness checks
func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// ReadyHandler checks the backing store
func (h *SystemHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error("Store health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, h.logger)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.logger)
}

// JWKSHandler publishes the public signing keys
func (h *SystemHandler) JWKSHandler(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.keys.GetJWKS(r.Context())
	if err != nil {
		h.logger.Error("Failed to render JWKS", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "internal server error", nil, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, jwks, h.logger)
}
