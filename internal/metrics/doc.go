// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring digest runs, upstream calls, and errors.

# Overview

The package provides metrics for:
  - Adaptive fetch behavior (iterations, page growth, guardrail trips)
  - Tautulli API call latency and outcomes
  - Retry executor attempts and exhaustions
  - Digest composition (message counts, trims, overflow)
  - Discord delivery latency and rate limiting
  - Run outcomes and in-flight state
  - Operational API requests

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:9631/metrics

# Available Metrics

Fetch Metrics:
  - fetch_duration_seconds: Adaptive fetch duration (histogram)
  - fetch_iterations: Iterations needed to cover the window (histogram)
  - fetch_final_page_size: Page size at loop termination (histogram)
  - fetch_items_retained: Items inside the window per fetch (histogram)
  - fetch_guardrail_trips_total: Fetches stopped by a cap (counter)
  - fetch_errors_total: Failed fetches (counter)
    Labels: error_type (api, http, network, timeout, breaker_open)

Tautulli Metrics:
  - tautulli_api_calls_total: API calls (counter)
    Labels: cmd, result (success, error)
  - tautulli_api_call_duration_seconds: API call latency (histogram)
    Labels: cmd

Retry Metrics:
  - retry_attempts_total: Retries after retryable failures (counter)
    Labels: operation
  - retry_exhaustions_total: Operations failing all attempts (counter)
    Labels: operation

Composition Metrics:
  - compose_messages_per_run: Messages produced per run (histogram)
  - compose_trim_attempts_total: Oversized-embed trim passes (counter)
  - compose_overflow_messages_total: Extra messages for trimmed items (counter)
  - compose_empty_digests_total: Empty-state digests (counter)

Delivery Metrics:
  - delivery_requests_total: Webhook requests (counter)
    Labels: status_code
  - delivery_duration_seconds: Webhook latency (histogram)
  - delivery_rate_limit_hits_total: 429 responses (counter)
  - delivery_errors_total: Failed deliveries (counter)
    Labels: error_type (client, server, network, timeout)

Run Metrics:
  - runs_total: Digest runs (counter)
    Labels: outcome (success, error, interrupted)
  - run_duration_seconds: Run duration (histogram)
  - run_items_found: Items found per run (histogram)
  - run_last_success_timestamp: Unix timestamp of last success (gauge)
  - runs_in_flight: Whether a run is executing, 0 or 1 (gauge)
  - runs_coalesced_total: Triggers skipped due to an active run (counter)
  - schedule_next_run_timestamp: Unix timestamp of the next run (gauge)

API Metrics:
  - api_requests_total: Operational API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

System Metrics:
  - app_info: Version and build information (gauge)
    Labels: version, go_version
  - app_uptime_seconds: Process uptime (gauge)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests through the breaker (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: name, from_state, to_state

# Usage Example

Recording a run from the orchestrator:

	result := runner.Run(ctx)
	metrics.RecordRun(string(result.Outcome), result.Duration, result.ItemsFound)

Exposing metrics on the operational router:

	import "github.com/prometheus/client_golang/prometheus/promhttp"

	r.Handle("/metrics", promhttp.Handler())

# Design Notes

All collectors are registered against the default registry at package init
via promauto. Helper functions accept plain Go values so callers do not
import prometheus types directly.
*/
package metrics
