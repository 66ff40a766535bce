package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthProbeTimeout = 5 * time.Second

// HealthProber reports whether a dependency is reachable.
type HealthProber interface {
	Health(ctx context.Context) error
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	embedding HealthProber
	running   func() bool
}

// NewHealthHandler creates a health handler. embedding may be nil when no
// face model is configured.
func NewHealthHandler(embedding HealthProber, running func() bool) *HealthHandler {
	return &HealthHandler{embedding: embedding, running: running}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status         string `json:"status"`
	SyncInProgress bool   `json:"sync_in_progress"`
	Embedding      string `json:"embedding"`
}

// Get always answers 200 while the process serves requests; the embedding
// backend state is informational.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Embedding: "disabled"}
	if h.running != nil {
		resp.SyncInProgress = h.running()
	}
	if h.embedding != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()
		if err := h.embedding.Health(ctx); err != nil {
			resp.Embedding = "unavailable"
		} else {
			resp.Embedding = "ok"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
