// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordFetch tests fetch metric recording
func TestRecordFetch(t *testing.T) {
	tests := []struct {
		name             string
		duration         time.Duration
		iterations       int
		finalPageSize    int
		retained         int
		guardrailTripped bool
	}{
		{
			name:          "single iteration quiet server",
			duration:      150 * time.Millisecond,
			iterations:    1,
			finalPageSize: 100,
			retained:      3,
		},
		{
			name:          "expanded twice on busy server",
			duration:      900 * time.Millisecond,
			iterations:    3,
			finalPageSize: 300,
			retained:      250,
		},
		{
			name:             "guardrail tripped at iteration cap",
			duration:         5 * time.Second,
			iterations:       10,
			finalPageSize:    1000,
			retained:         999,
			guardrailTripped: true,
		},
		{
			name:          "empty window",
			duration:      80 * time.Millisecond,
			iterations:    1,
			finalPageSize: 100,
			retained:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Record the fetch - should not panic
			RecordFetch(tt.duration, tt.iterations, tt.finalPageSize, tt.retained, tt.guardrailTripped)
		})
	}
}

// TestRecordFetchGuardrail verifies the guardrail counter increments
func TestRecordFetchGuardrail(t *testing.T) {
	before := testutil.ToFloat64(FetchGuardrailTrips)

	RecordFetch(time.Second, 10, 1000, 500, true)
	RecordFetch(time.Second, 2, 200, 50, false)

	after := testutil.ToFloat64(FetchGuardrailTrips)
	if after != before+1 {
		t.Errorf("expected guardrail trips to increase by 1, got %v -> %v", before, after)
	}
}

// TestRecordFetchError tests fetch error recording by type
func TestRecordFetchError(t *testing.T) {
	errorTypes := []string{"api", "network", "timeout", "breaker_open"}

	for _, errorType := range errorTypes {
		t.Run(errorType, func(t *testing.T) {
			before := testutil.ToFloat64(FetchErrors.WithLabelValues(errorType))
			RecordFetchError(errorType)
			after := testutil.ToFloat64(FetchErrors.WithLabelValues(errorType))
			if after != before+1 {
				t.Errorf("expected %s errors to increase by 1, got %v -> %v", errorType, before, after)
			}
		})
	}
}

// TestRecordTautulliCall tests Tautulli API call recording
func TestRecordTautulliCall(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		duration time.Duration
		err      error
		result   string
	}{
		{
			name:     "successful recently added call",
			cmd:      "get_recently_added",
			duration: 120 * time.Millisecond,
			err:      nil,
			result:   "success",
		},
		{
			name:     "successful arnold ping",
			cmd:      "arnold",
			duration: 15 * time.Millisecond,
			err:      nil,
			result:   "success",
		},
		{
			name:     "failed identity call",
			cmd:      "get_server_identity",
			duration: 10 * time.Second,
			err:      errTest,
			result:   "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(TautulliAPICalls.WithLabelValues(tt.cmd, tt.result))
			RecordTautulliCall(tt.cmd, tt.duration, tt.err)
			after := testutil.ToFloat64(TautulliAPICalls.WithLabelValues(tt.cmd, tt.result))
			if after != before+1 {
				t.Errorf("expected %s/%s to increase by 1, got %v -> %v", tt.cmd, tt.result, before, after)
			}
		})
	}
}

// TestRetryMetrics tests retry attempt and exhaustion recording
func TestRetryMetrics(t *testing.T) {
	operations := []string{"tautulli_fetch", "discord_delivery"}

	for _, op := range operations {
		t.Run(op, func(t *testing.T) {
			attemptsBefore := testutil.ToFloat64(RetryAttempts.WithLabelValues(op))
			RecordRetryAttempt(op)
			RecordRetryAttempt(op)
			attemptsAfter := testutil.ToFloat64(RetryAttempts.WithLabelValues(op))
			if attemptsAfter != attemptsBefore+2 {
				t.Errorf("expected attempts +2, got %v -> %v", attemptsBefore, attemptsAfter)
			}

			exhaustedBefore := testutil.ToFloat64(RetryExhaustions.WithLabelValues(op))
			RecordRetryExhaustion(op)
			exhaustedAfter := testutil.ToFloat64(RetryExhaustions.WithLabelValues(op))
			if exhaustedAfter != exhaustedBefore+1 {
				t.Errorf("expected exhaustions +1, got %v -> %v", exhaustedBefore, exhaustedAfter)
			}
		})
	}
}

// TestRecordCompose tests composition metric recording
func TestRecordCompose(t *testing.T) {
	tests := []struct {
		name             string
		messages         int
		trimAttempts     int
		overflowMessages int
	}{
		{"single message no trims", 1, 0, 0},
		{"oversized category trimmed", 2, 3, 1},
		{"many categories", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordCompose(tt.messages, tt.trimAttempts, tt.overflowMessages)
		})
	}
}

// TestRecordEmptyDigest verifies the empty digest counter
func TestRecordEmptyDigest(t *testing.T) {
	before := testutil.ToFloat64(ComposeEmptyDigests)
	RecordEmptyDigest()
	after := testutil.ToFloat64(ComposeEmptyDigests)
	if after != before+1 {
		t.Errorf("expected empty digests +1, got %v -> %v", before, after)
	}
}

// TestRecordDelivery tests delivery metric recording
func TestRecordDelivery(t *testing.T) {
	tests := []struct {
		name       string
		statusCode string
		duration   time.Duration
	}{
		{"successful delivery", "204", 200 * time.Millisecond},
		{"rate limited delivery", "429", 50 * time.Millisecond},
		{"server error", "500", 100 * time.Millisecond},
		{"malformed payload rejected", "400", 30 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(DeliveryRequests.WithLabelValues(tt.statusCode))
			RecordDelivery(tt.statusCode, tt.duration)
			after := testutil.ToFloat64(DeliveryRequests.WithLabelValues(tt.statusCode))
			if after != before+1 {
				t.Errorf("expected %s requests +1, got %v -> %v", tt.statusCode, before, after)
			}
		})
	}
}

// TestRecordDelivery429IncrementsRateLimitCounter verifies 429 handling
func TestRecordDelivery429IncrementsRateLimitCounter(t *testing.T) {
	before := testutil.ToFloat64(DeliveryRateLimitHits)

	RecordDelivery("429", 10*time.Millisecond)
	RecordDelivery("204", 10*time.Millisecond)

	after := testutil.ToFloat64(DeliveryRateLimitHits)
	if after != before+1 {
		t.Errorf("expected rate limit hits +1, got %v -> %v", before, after)
	}
}

// TestRecordRun tests run outcome recording
func TestRecordRun(t *testing.T) {
	tests := []struct {
		name       string
		outcome    string
		duration   time.Duration
		itemsFound int
	}{
		{"successful run", "success", 3 * time.Second, 42},
		{"failed run", "error", 30 * time.Second, 0},
		{"interrupted run", "interrupted", 1 * time.Second, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(RunsTotal.WithLabelValues(tt.outcome))
			RecordRun(tt.outcome, tt.duration, tt.itemsFound)
			after := testutil.ToFloat64(RunsTotal.WithLabelValues(tt.outcome))
			if after != before+1 {
				t.Errorf("expected %s runs +1, got %v -> %v", tt.outcome, before, after)
			}
		})
	}
}

// TestRecordRunSuccessSetsTimestamp verifies last success gauge updates
func TestRecordRunSuccessSetsTimestamp(t *testing.T) {
	RecordRun("success", time.Second, 5)

	ts := testutil.ToFloat64(RunLastSuccess)
	if ts == 0 {
		t.Error("expected last success timestamp to be set")
	}
	if time.Since(time.Unix(int64(ts), 0)) > time.Minute {
		t.Errorf("expected recent timestamp, got %v", ts)
	}
}

// TestTrackRunInFlight tests the in-flight gauge
func TestTrackRunInFlight(t *testing.T) {
	TrackRunInFlight(true)
	if got := testutil.ToFloat64(RunsInFlight); got != 1 {
		t.Errorf("expected in-flight gauge 1, got %v", got)
	}

	TrackRunInFlight(false)
	if got := testutil.ToFloat64(RunsInFlight); got != 0 {
		t.Errorf("expected in-flight gauge 0, got %v", got)
	}
}

// TestRecordRunCoalesced verifies the coalesced trigger counter
func TestRecordRunCoalesced(t *testing.T) {
	before := testutil.ToFloat64(RunsCoalesced)
	RecordRunCoalesced()
	after := testutil.ToFloat64(RunsCoalesced)
	if after != before+1 {
		t.Errorf("expected coalesced runs +1, got %v -> %v", before, after)
	}
}

// TestRecordAPIRequest tests API request metric recording
func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{"status query", "GET", "/api/v1/status", "200", 5 * time.Millisecond},
		{"manual trigger", "POST", "/api/v1/run", "202", 10 * time.Millisecond},
		{"trigger while running", "POST", "/api/v1/run", "409", 2 * time.Millisecond},
		{"health check", "GET", "/healthz", "200", time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

// TestTrackActiveRequest tests the active request gauge
func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	mid := testutil.ToFloat64(APIActiveRequests)
	if mid != before+2 {
		t.Errorf("expected active requests +2, got %v -> %v", before, mid)
	}

	TrackActiveRequest(false)
	TrackActiveRequest(false)
	after := testutil.ToFloat64(APIActiveRequests)
	if after != before {
		t.Errorf("expected active requests restored, got %v -> %v", before, after)
	}
}

// TestConcurrentRecording verifies metric helpers are safe for concurrent use
func TestConcurrentRecording(t *testing.T) {
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordFetch(time.Millisecond, 1, 100, 5, false)
				RecordDelivery("204", time.Millisecond)
				RecordRetryAttempt("tautulli_fetch")
				RecordAPIRequest("GET", "/healthz", "200", time.Millisecond)
			}
		}()
	}

	wg.Wait()
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	// Record some metrics
	RecordFetch(time.Millisecond, 1, 100, 1, false)
	RecordDelivery("204", time.Millisecond)

	// Verify we can lint the metrics (checks for consistency issues)
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

// Benchmark tests for metrics performance

func BenchmarkRecordFetch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordFetch(150*time.Millisecond, 2, 200, 40, false)
	}
}

func BenchmarkRecordDelivery(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordDelivery("204", 200*time.Millisecond)
	}
}

func BenchmarkRecordRun(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordRun("success", 3*time.Second, 42)
	}
}

var errTest = &testError{msg: "tautulli timeout"}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
