// Package server provides the HTTP server and routing for the dashboard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config holds server configuration.
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	DashboardDir string // static dashboard files; empty disables serving
	Handler      *Handler
	System       *SystemHandlers
}

// Server represents the HTTP server.
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	dashboardDir string
	handler      *Handler
	system       *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		dashboardDir: cfg.DashboardDir,
		handler:      cfg.Handler,
		system:       cfg.System,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// The dashboard is a static page opened from file:// or another host.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes registers API routes and static dashboard serving.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		s.handler.RegisterRoutes(r)
		s.system.RegisterRoutes(r)
	})

	if s.dashboardDir != "" {
		if _, err := os.Stat(s.dashboardDir); err != nil {
			s.log.Warn().Str("dir", s.dashboardDir).Msg("Dashboard directory missing, static serving disabled")
			return
		}
		fileServer := http.FileServer(http.Dir(s.dashboardDir))
		s.router.Handle("/*", fileServer)
	}
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start begins listening for requests. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() chi.Router {
	return s.router
}
