package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/curation"
	"github.com/kozaktomas/facesync/internal/httpclient"
	"github.com/kozaktomas/facesync/internal/immich"
)

// PeopleLister lists catalog people.
type PeopleLister interface {
	GetPeople(ctx context.Context) ([]immich.Person, error)
}

// Curator suggests faces for a person.
type Curator interface {
	Curate(ctx context.Context, personID string, maxCandidates, k int) (*curation.Suggestion, error)
}

// PeopleHandler handles people and face suggestion endpoints
type PeopleHandler struct {
	catalog PeopleLister
	curator Curator
	logger  zerolog.Logger
}

// NewPeopleHandler creates a new people handler
func NewPeopleHandler(catalog PeopleLister, curator Curator, logger zerolog.Logger) *PeopleHandler {
	return &PeopleHandler{catalog: catalog, curator: curator, logger: logger}
}

// PersonResponse represents a person in API responses
type PersonResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Hidden bool   `json:"hidden,omitempty"`
}

// List returns the catalog people in natural name order ("Guest 2" before
// "Guest 10"). Unnamed people are listed last since a sync skips them.
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.catalog.GetPeople(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list people")
		respondError(w, http.StatusBadGateway, "failed to list people from Immich")
		return
	}

	result := make([]PersonResponse, 0, len(people))
	for _, p := range people {
		result = append(result, PersonResponse{ID: p.ID, Name: p.Name, Hidden: p.IsHidden})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if (result[i].Name == "") != (result[j].Name == "") {
			return result[j].Name == ""
		}
		if result[i].Name == result[j].Name {
			return false
		}
		return natsort.Compare(result[i].Name, result[j].Name)
	})

	respondJSON(w, http.StatusOK, result)
}

// Suggestions curates a person's faces. Query parameters k and
// max_candidates override the configured defaults.
func (h *PeopleHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")
	if personID == "" {
		respondError(w, http.StatusBadRequest, "missing person ID")
		return
	}

	k, err := queryInt(r, "k")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxCandidates, err := queryInt(r, "max_candidates")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	suggestion, err := h.curator.Curate(r.Context(), personID, maxCandidates, k)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if httpclient.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "person not found")
			return
		}
		h.logger.Error().Err(err).Str("person_id", sanitizeForLog(personID)).Msg("curation failed")
		respondError(w, http.StatusBadGateway, "failed to list faces from Immich")
		return
	}

	respondJSON(w, http.StatusOK, suggestion)
}
