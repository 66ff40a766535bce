package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/syncer"
)

// SyncRunner starts sync runs and exposes their status and events.
type SyncRunner interface {
	Trigger(ctx context.Context, sel *syncer.Selection) (string, error)
	Tracker() *status.Tracker
	Events() *syncer.Broadcaster
}

// SyncHandler handles sync endpoints
type SyncHandler struct {
	runner SyncRunner
	logger zerolog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{runner: runner, logger: logger}
}

// StartResponse is returned when a run was accepted.
type StartResponse struct {
	RunID string `json:"run_id"`
}

// Start triggers a run in the background. The optional body selects one
// person and, optionally, an explicit list of that person's faces.
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	var sel syncer.Selection
	if err := decodeOptionalJSON(r, &sel); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var selPtr *syncer.Selection
	if sel.PersonID != "" || len(sel.FaceIDs) > 0 {
		selPtr = &sel
	}

	runID, err := h.runner.Trigger(r.Context(), selPtr)
	switch {
	case errors.Is(err, syncer.ErrAlreadyRunning):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, syncer.ErrInvalidSelection):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to start sync")
		respondError(w, http.StatusInternalServerError, "failed to start sync")
		return
	}

	h.logger.Info().Str("run_id", runID).Str("person_id", sanitizeForLog(sel.PersonID)).
		Int("face_ids", len(sel.FaceIDs)).Msg("sync triggered")
	respondJSON(w, http.StatusAccepted, StartResponse{RunID: runID})
}

// Status returns a snapshot of the current or last run.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.runner.Tracker().Snapshot())
}

// Events streams run events as server-sent events.
func (h *SyncHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.runner.Events(), func() any {
		return h.runner.Tracker().Snapshot()
	})
}
