// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides the HTTP surface of the jobgate daemon.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/control/middleware"
	"github.com/ManuGH/jobgate/internal/health"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/ManuGH/jobgate/internal/logstore"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds submission bodies.
const maxBodyBytes = 1 << 20

// Coordinator is the job side of the API.
type Coordinator interface {
	Submit(ctx context.Context, req jobs.Request) (jobs.Result, error)
	Status() (admission.Holder, bool)
	JobState(id, kind string) (jobs.Status, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Coordinator Coordinator
	Logs        *logstore.Store
	Health      *health.Manager
}

// Server represents the HTTP API server for jobgate.
type Server struct {
	cfg    config.AppConfig
	jobs   Coordinator
	logs   *logstore.Store
	health *health.Manager

	// retryAfter is advertised on busy rejections.
	retryAfter time.Duration
	router     chi.Router
}

// New builds a Server and its routes.
func New(cfg config.AppConfig, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		jobs:       deps.Coordinator,
		logs:       deps.Logs,
		health:     deps.Health,
		retryAfter: admission.DefaultRetryAfter,
	}
	if s.health == nil {
		s.health = health.NewManager(cfg.Version)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) newRouter() *chi.Mux {
	rpm := 0
	if s.cfg.RateLimit.Enabled {
		rpm = s.cfg.RateLimit.RequestsPerMinute
	}
	tracing := ""
	if s.cfg.Tracing.Enabled {
		tracing = "jobgate-api"
	}
	return middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins:        s.cfg.Server.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
		RequestsPerMinute:     rpm,
	})
}

func (s *Server) routes() chi.Router {
	r := s.newRouter()

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Get("/health", s.health.ServeLegacy)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs/current", s.handleCurrent)
		r.Get("/jobs/{id}", s.handleJobState)
		r.Get("/logs/{name}", s.handleLogs)
		r.Get("/logs/{name}/download", s.handleLogDownload)
	})

	// Routes kept for clients of the original green-screen service.
	r.Post("/convert", s.handleConvert)
	r.Get("/logs/{name}", s.handleLegacyLogs)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "server/not-found", "Not Found", "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "server/method-not-allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", r.Method+" not allowed")
	})
	return r
}
