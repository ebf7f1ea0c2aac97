// SPDX-License-Identifier: MIT

// Package api is the HTTP and websocket surface over the supervisor,
// the model registry, the download manager and the output tree.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/livecap/internal/cache"
	"github.com/ManuGH/livecap/internal/hub"
	"github.com/ManuGH/livecap/internal/jobs"
	"github.com/ManuGH/livecap/internal/models"
	"github.com/ManuGH/livecap/internal/session"
)

const defaultRateLimit = 300 // requests per minute per IP

// Options wires the server's collaborators.
type Options struct {
	Supervisor *session.Supervisor
	Hub        *hub.Hub
	Registry   *models.Registry
	Jobs       *jobs.Manager
	Cache      cache.Cache

	OutRoot    string
	AdminToken string
	Version    string

	// RateLimit is requests per minute per client IP; 0 uses the default.
	RateLimit int
}

// Server holds the router. Construct with New, serve via Handler.
type Server struct {
	opts   Options
	router chi.Router
}

// New builds the router with the canonical middleware stack.
func New(opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	s := &Server{opts: opts, router: chi.NewRouter()}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(httprate.Limit(
		opts.RateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/models/asr", s.handleListASR)
	r.Get("/models/mt", s.handleListMT)
	r.Get("/models/asr/{name}/capabilities", s.handleCapabilities)
	r.Get("/languages/mt/{model_id}", s.handleMTLanguages)
	r.Post("/models/download", s.handleDownload)

	r.Get("/sessions", s.handleListSessions)
	r.Post("/sessions", s.handleCreateSession)
	r.Delete("/sessions/{sid}", s.handleDeleteSession)

	r.Post("/admin/cache/clear", s.handleCacheClear)

	r.Get("/events/{sid}", s.handleEvents)

	r.Get("/out/*", s.handleOutFile)
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "livecap-api")
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
	})
}
