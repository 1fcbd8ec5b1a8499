// Package web provides the HTTP server for the board sync drop page and API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/boardsync/internal/config"
	"github.com/JonMunkholm/boardsync/internal/core"
	mw "github.com/JonMunkholm/boardsync/internal/web/middleware"
)

// Server is the HTTP server in front of one orchestrator.
type Server struct {
	orch   *core.Orchestrator
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server with middleware and routes configured.
func NewServer(orch *core.Orchestrator, cfg *config.Config) *Server {
	s := &Server{
		orch:   orch,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	// Progress streams stay open for a whole run and skip the request timeout.
	s.router.Get("/api/progress", s.handleProgressSSE)
	s.router.Get("/api/ws", s.handleProgressWS)

	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/", s.handleIndex)

		r.Route("/api", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Post("/sync", s.handleSync)
			r.Get("/state", s.handleState)

			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{runID}", s.handleGetRun)
			r.Get("/runs/{runID}/failed-rows", s.handleFailedRows)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// The page is a single document with inline style and script.
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
