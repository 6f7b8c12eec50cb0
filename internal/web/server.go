// Package web serves the search API over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/engine"
	"github.com/kozaktomas/image-search/internal/web/handlers"
	"github.com/kozaktomas/image-search/internal/web/middleware"
)

const (
	requestTimeout = 5 * time.Minute
	readTimeout    = 30 * time.Second
	idleTimeout    = 60 * time.Second
)

// Server owns the router, the HTTP listener and the ingest job registry.
type Server struct {
	config     *config.Config
	engine     *engine.Engine
	router     *chi.Mux
	httpServer *http.Server
	jobManager *handlers.JobManager
}

// NewServer builds the router for eng. Nothing listens until Start.
func NewServer(cfg *config.Config, eng *engine.Engine) *Server {
	s := &Server{
		config:     cfg,
		engine:     eng,
		router:     chi.NewRouter(),
		jobManager: handlers.NewJobManager(),
	}

	s.router.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
		chiMiddleware.Logger,
		chiMiddleware.Recoverer,
		chiMiddleware.CleanPath,
		chiMiddleware.Timeout(requestTimeout),
		middleware.CORS(cfg.Web.AllowedOrigins),
		middleware.SecurityHeaders(),
	)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Web.Host, strconv.Itoa(cfg.Web.Port)),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: requestTimeout, // event streams stay open for a whole ingest job
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s (store: %s)", s.httpServer.Addr, database.BackendName())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown cancels running ingest jobs, then drains open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.jobManager.CancelAll()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
