// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package discord

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/nuntius/internal/retry"
)

// newTestClient builds a client with millisecond retry delays and pacing
// so failure paths stay fast.
func newTestClient(webhookURL string) *Client {
	c := NewClient(webhookURL, 5*time.Second)
	c.policy.BaseDelay = time.Millisecond
	c.policy.MaxDelay = 4 * time.Millisecond
	c.limiter = rate.NewLimiter(rate.Every(time.Millisecond), 1)
	return c
}

func testPayload(title string) Payload {
	return Payload{Embeds: []Embed{{Title: title, Description: "**1 movie added**"}}}
}

func TestSendSuccess(t *testing.T) {
	var calls atomic.Int32
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Send(context.Background(), testPayload("🎬 Movies - Last 7 days")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("got %d requests, want 1", calls.Load())
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != "🎬 Movies - Last 7 days" {
		t.Errorf("server received %+v", got)
	}
}

func TestSendAcceptsOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).Send(context.Background(), testPayload("t")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := newTestClient(server.URL).Send(context.Background(), testPayload("t")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d requests, want 3", calls.Load())
	}
}

func TestSendDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"embeds": ["0"]}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Send(context.Background(), testPayload("t"))
	if err == nil {
		t.Fatal("Send() error = nil, want rejection")
	}
	if calls.Load() != 1 {
		t.Errorf("got %d requests, want 1 (400 must not be retried)", calls.Load())
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error %T, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Body, "embeds") {
		t.Errorf("Body = %q, want the rejection detail", statusErr.Body)
	}
}

func TestSendHonorsRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message": "You are being rate limited.", "retry_after": 0.05, "global": false}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	start := time.Now()
	if err := newTestClient(server.URL).Send(context.Background(), testPayload("t")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d requests, want 2", calls.Load())
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("retried after %v, want at least the server-specified 50ms", elapsed)
	}
}

func TestSendExhaustsOnPersistentFailure(t *testing.T) {
	server := httptest.NewServer(errorHandler(http.StatusServiceUnavailable, "down"))
	defer server.Close()

	err := newTestClient(server.URL).Send(context.Background(), testPayload("t"))
	if err == nil {
		t.Fatal("Send() error = nil, want exhaustion")
	}

	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error %T, want *retry.ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unwrapped error = %v, want the final 503", err)
	}
}

func TestSendNetworkErrorRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := newTestClient(server.URL).Send(context.Background(), testPayload("t"))
	if err == nil {
		t.Fatal("Send() error = nil, want network failure")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v, want retry exhaustion", err)
	}
}

func TestSendAll(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payloads := []Payload{testPayload("part 1"), testPayload("part 2"), testPayload("part 3")}
	sent, err := newTestClient(server.URL).SendAll(context.Background(), payloads)
	if err != nil {
		t.Fatalf("SendAll() error = %v", err)
	}
	if sent != 3 {
		t.Errorf("sent = %d, want 3", sent)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d requests, want 3", calls.Load())
	}
}

func TestSendAllStopsOnHardFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"embeds": ["0"]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payloads := []Payload{testPayload("part 1"), testPayload("part 2"), testPayload("part 3")}
	sent, err := newTestClient(server.URL).SendAll(context.Background(), payloads)
	if err == nil {
		t.Fatal("SendAll() error = nil, want failure on part 2")
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d requests, want 2 (no attempt past the failure)", calls.Load())
	}
	if !strings.Contains(err.Error(), "payload 2/3") {
		t.Errorf("error = %v, want the failing part named", err)
	}
}

func TestSendAllCanceledContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, err := newTestClient(server.URL).SendAll(ctx, []Payload{testPayload("t")})
	if err == nil {
		t.Fatal("SendAll() error = nil, want cancellation")
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
	if calls.Load() != 0 {
		t.Errorf("got %d requests, want 0", calls.Load())
	}
}

// errorHandler returns a handler that replies with an HTTP error status.
func errorHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantWait      time.Duration
	}{
		{
			name:          "rate limit carries wait",
			err:           &StatusError{StatusCode: 429, RetryAfter: 2 * time.Second},
			wantRetryable: true,
			wantWait:      2 * time.Second,
		},
		{
			name:          "server error",
			err:           &StatusError{StatusCode: 503},
			wantRetryable: true,
		},
		{
			name: "bad request",
			err:  &StatusError{StatusCode: 400},
		},
		{
			name: "not found",
			err:  &StatusError{StatusCode: 404},
		},
		{
			name:          "network error",
			err:           errors.New("connection refused"),
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := classifyError(tt.err)
			if verdict.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", verdict.Retryable, tt.wantRetryable)
			}
			if verdict.RetryAfter != tt.wantWait {
				t.Errorf("RetryAfter = %v, want %v", verdict.RetryAfter, tt.wantWait)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		want   time.Duration
	}{
		{
			name:   "json body wins over header",
			body:   `{"message": "You are being rate limited.", "retry_after": 1.5, "global": false}`,
			header: "7",
			want:   1500 * time.Millisecond,
		},
		{
			name:   "header fallback",
			body:   "not json",
			header: "2",
			want:   2 * time.Second,
		},
		{
			name:   "fractional header",
			body:   "",
			header: "0.5",
			want:   500 * time.Millisecond,
		},
		{
			name: "nothing usable",
			body: `{"message": "nope"}`,
		},
		{
			name:   "negative header ignored",
			body:   "",
			header: "-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.body, tt.header); got != tt.want {
				t.Errorf("parseRetryAfter(%q, %q) = %v, want %v", tt.body, tt.header, got, tt.want)
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: &StatusError{StatusCode: 429}, want: "rate_limited"},
		{err: &StatusError{StatusCode: 400}, want: "rejected"},
		{err: &StatusError{StatusCode: 500}, want: "http"},
		{err: errors.New("dial tcp: refused"), want: "network"},
	}

	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: 400, Body: `{"embeds": ["0"]}`}
	want := `webhook delivery failed with status 400: {"embeds": ["0"]}`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
