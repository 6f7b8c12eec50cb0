package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/image-search/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	searchHandler := handlers.NewSearchHandler(s.config, s.engine)
	itemsHandler := handlers.NewItemsHandler(s.engine)
	configHandler := handlers.NewConfigHandler(s.config, s.engine)
	ingestHandler := handlers.NewIngestHandler(s.config, s.engine, s.jobManager)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// Queries
		r.Get("/search/category", searchHandler.Category)
		r.Get("/search/color/{name}", searchHandler.Color)
		r.Post("/search/similar", searchHandler.Similar)
		r.Get("/search/dominant/{color}", searchHandler.Dominant)

		// Item IDs are image paths and may contain slashes
		r.Get("/items/*", itemsHandler.Get)

		// Ingest (long-running)
		r.Post("/ingest", ingestHandler.Start)
		r.Get("/ingest/{jobId}", ingestHandler.Status)
		r.Get("/ingest/{jobId}/events", ingestHandler.Events)
		r.Delete("/ingest/{jobId}", ingestHandler.Cancel)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
}
