package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/facesync/internal/web/handlers"
)

// requestTimeout bounds every route except the event stream. Curation of a
// large candidate set is the slowest regular request.
const requestTimeout = 5 * time.Minute

func (s *Server) setupRoutes() {
	// Create handlers
	syncHandler := handlers.NewSyncHandler(s.deps.Syncer, s.logger)
	peopleHandler := handlers.NewPeopleHandler(s.deps.People, s.deps.Curator, s.logger)
	healthHandler := handlers.NewHealthHandler(s.deps.Embedding, s.deps.Syncer.Tracker().InProgress)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived event stream
		r.Get("/sync/events", syncHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/health", healthHandler.Get)

			// Sync
			r.Post("/sync", syncHandler.Start)
			r.Get("/sync/status", syncHandler.Status)

			// People and curated face suggestions
			r.Get("/people", peopleHandler.List)
			r.Get("/people/{personId}/suggestions", peopleHandler.Suggestions)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
}
