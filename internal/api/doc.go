// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package api serves the optional operational HTTP surface.
//
// The surface is small and bind-local by default:
//
//	GET  /healthz        - liveness with version and uptime
//	GET  /metrics        - Prometheus exposition
//	GET  /api/v1/status  - scheduler snapshot (schedule, next run, last run)
//	POST /api/v1/run     - manual digest trigger, optional {"days": N} body
//
// The digest pipeline never depends on this package; it exists for
// operators and monitoring. Manual triggers go through the scheduler's
// coalescing gate, so a trigger during an active run is answered with
// 409 rather than queued.
//
// All endpoints are rate limited per client IP with go-chi/httprate.
// Responses are JSON and marked Cache-Control: no-store.
package api
