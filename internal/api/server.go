// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/nuntius/internal/scheduler"
)

// DigestScheduler is the scheduler surface the ops API consumes.
type DigestScheduler interface {
	Status() scheduler.Status
	TriggerNow(days int) (string, error)
}

var _ DigestScheduler = (*scheduler.Scheduler)(nil)

// Server holds the handlers for the operational endpoints.
type Server struct {
	scheduler DigestScheduler
	version   string
	startTime time.Time
}

// NewServer creates the ops API server. The version string appears in
// the /healthz body.
func NewServer(sched DigestScheduler, version string) *Server {
	return &Server{
		scheduler: sched,
		version:   version,
		startTime: time.Now(),
	}
}

// Routes builds the Chi router for the ops surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger())

	// ========================
	// Health and Metrics
	// ========================
	// Permissive limit so monitoring probes are never starved.
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(RateLimitHealth, "healthz"))
		r.Get("/healthz", s.handleHealthz)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Ops API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requestMetrics)

		r.With(rateLimit(RateLimitStatus, "status")).Get("/status", s.handleStatus)

		// Strict limit: manual runs are resource intensive and coalesce
		// anyway, so a burst only produces 409s.
		r.With(rateLimit(RateLimitTrigger, "run")).Post("/run", s.handleRunNow)
	})

	return r
}
