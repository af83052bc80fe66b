// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Tautulli fetch iterations and API calls
// - Retry executor attempts and exhaustions
// - Digest composition (messages, trims, overflow)
// - Discord delivery latency and rate limiting
// - Scheduled and one-shot run outcomes

var (
	// Fetch Metrics
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of adaptive recently-added fetches in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
	)

	FetchIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_iterations",
			Help:    "Number of fetch iterations needed to cover the lookback window",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	FetchPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_final_page_size",
			Help:    "Page size in use when the fetch loop terminated",
			Buckets: []float64{100, 200, 300, 500, 1000, 2500, 5000, 10000},
		},
	)

	FetchItemsRetained = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_items_retained",
			Help:    "Number of items inside the lookback window per fetch",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	FetchGuardrailTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_guardrail_trips_total",
			Help: "Total number of fetches stopped by the iteration or page-size cap",
		},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of failed fetches",
		},
		[]string{"error_type"}, // "api", "http", "network", "timeout", "breaker_open"
	)

	// Tautulli API Metrics
	TautulliAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tautulli_api_calls_total",
			Help: "Total number of Tautulli API calls",
		},
		[]string{"cmd", "result"}, // result: "success", "error"
	)

	TautulliAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tautulli_api_call_duration_seconds",
			Help:    "Duration of Tautulli API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cmd"},
	)

	// Retry Executor Metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts after a retryable failure",
		},
		[]string{"operation"},
	)

	RetryExhaustions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_exhaustions_total",
			Help: "Total number of operations that failed all retry attempts",
		},
		[]string{"operation"},
	)

	// Composition Metrics
	ComposeMessages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compose_messages_per_run",
			Help:    "Number of Discord messages produced per digest run",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10, 20},
		},
	)

	ComposeTrimAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compose_trim_attempts_total",
			Help: "Total number of oversized-embed trim passes",
		},
	)

	ComposeOverflowMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compose_overflow_messages_total",
			Help: "Total number of additional messages created for trimmed items",
		},
	)

	ComposeEmptyDigests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compose_empty_digests_total",
			Help: "Total number of empty-state digests composed",
		},
	)

	// Delivery Metrics
	DeliveryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_requests_total",
			Help: "Total number of Discord webhook requests",
		},
		[]string{"status_code"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_duration_seconds",
			Help:    "Duration of Discord webhook requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeliveryRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_rate_limit_hits_total",
			Help: "Total number of 429 responses from Discord",
		},
	)

	DeliveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_errors_total",
			Help: "Total number of failed Discord deliveries",
		},
		[]string{"error_type"}, // "client", "server", "network", "timeout"
	)

	// Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runs_total",
			Help: "Total number of digest runs by outcome",
		},
		[]string{"outcome"}, // "success", "error", "interrupted"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "run_duration_seconds",
			Help:    "Duration of digest runs in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	RunItemsFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "run_items_found",
			Help:    "Number of recently added items found per run",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	RunLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "run_last_success_timestamp",
			Help: "Unix timestamp of last successful digest run",
		},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runs_in_flight",
			Help: "Whether a digest run is currently executing (0 or 1)",
		},
	)

	RunsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runs_coalesced_total",
			Help: "Total number of scheduled triggers skipped because a run was active",
		},
	)

	ScheduleNextRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedule_next_run_timestamp",
			Help: "Unix timestamp of the next scheduled digest run",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordFetch records the outcome of one adaptive fetch.
func RecordFetch(duration time.Duration, iterations, finalPageSize, retained int, guardrailTripped bool) {
	FetchDuration.Observe(duration.Seconds())
	FetchIterations.Observe(float64(iterations))
	FetchPageSize.Observe(float64(finalPageSize))
	FetchItemsRetained.Observe(float64(retained))
	if guardrailTripped {
		FetchGuardrailTrips.Inc()
	}
}

// RecordFetchError records a failed fetch by error type.
func RecordFetchError(errorType string) {
	FetchErrors.WithLabelValues(errorType).Inc()
}

// RecordTautulliCall records a Tautulli API call.
func RecordTautulliCall(cmd string, duration time.Duration, err error) {
	TautulliAPICallDuration.WithLabelValues(cmd).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	TautulliAPICalls.WithLabelValues(cmd, result).Inc()
}

// RecordRetryAttempt records a retry after a retryable failure.
func RecordRetryAttempt(operation string) {
	RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordRetryExhaustion records an operation failing all attempts.
func RecordRetryExhaustion(operation string) {
	RetryExhaustions.WithLabelValues(operation).Inc()
}

// RecordCompose records the result of composing a digest.
func RecordCompose(messages, trimAttempts, overflowMessages int) {
	ComposeMessages.Observe(float64(messages))
	if trimAttempts > 0 {
		ComposeTrimAttempts.Add(float64(trimAttempts))
	}
	if overflowMessages > 0 {
		ComposeOverflowMessages.Add(float64(overflowMessages))
	}
}

// RecordEmptyDigest records an empty-state digest composition.
func RecordEmptyDigest() {
	ComposeEmptyDigests.Inc()
}

// RecordDelivery records a Discord webhook request.
func RecordDelivery(statusCode string, duration time.Duration) {
	DeliveryRequests.WithLabelValues(statusCode).Inc()
	DeliveryDuration.Observe(duration.Seconds())
	if statusCode == "429" {
		DeliveryRateLimitHits.Inc()
	}
}

// RecordDeliveryError records a failed delivery by error type.
func RecordDeliveryError(errorType string) {
	DeliveryErrors.WithLabelValues(errorType).Inc()
}

// RecordRun records a completed digest run.
func RecordRun(outcome string, duration time.Duration, itemsFound int) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(duration.Seconds())
	RunItemsFound.Observe(float64(itemsFound))
	if outcome == "success" {
		RunLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// TrackRunInFlight marks a run as started or finished.
func TrackRunInFlight(active bool) {
	if active {
		RunsInFlight.Set(1)
	} else {
		RunsInFlight.Set(0)
	}
}

// RecordRunCoalesced records a scheduled trigger skipped due to an active run.
func RecordRunCoalesced() {
	RunsCoalesced.Inc()
}

// SetNextRun publishes the next scheduled run time. A zero time clears
// the gauge.
func SetNextRun(t time.Time) {
	if t.IsZero() {
		ScheduleNextRun.Set(0)
		return
	}
	ScheduleNextRun.Set(float64(t.Unix()))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
