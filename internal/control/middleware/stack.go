// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package middleware holds the HTTP ingress stack shared by the API router.
package middleware

import (
	"time"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig configures the middleware stack.
type StackConfig struct {
	// AllowedOrigins enables CORS for browser clients. Empty disables CORS.
	AllowedOrigins []string

	EnableSecurityHeaders bool

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// RequestsPerMinute per client IP. Zero disables rate limiting.
	RequestsPerMinute int
}

// NewRouter constructs a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r. Order matters: recovery is
// outermost and the request id is assigned before anything logs.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	r.Use(OriginGuard(cfg.AllowedOrigins))
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders)
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	if cfg.RequestsPerMinute > 0 {
		r.Use(RateLimit(RateLimitConfig{RequestLimit: cfg.RequestsPerMinute, WindowSize: time.Minute}))
	}
}
