// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

//go:build integration

package testinfra

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// WebhookCapture represents a captured webhook request.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// MockWebhookServer stands in for a Discord webhook endpoint. It captures
// every incoming request for verification and answers 204 No Content by
// default, matching Discord's response to a successful webhook execution.
type MockWebhookServer struct {
	Server   *httptest.Server
	mu       sync.Mutex
	captures []WebhookCapture

	// ResponseStatus is the HTTP status code to return (default: 204).
	ResponseStatus int

	// ResponseBody is the response body to return.
	ResponseBody []byte

	// ResponseFunc allows custom response handling per request. When set
	// it takes precedence over ResponseStatus and ResponseBody.
	ResponseFunc func(w http.ResponseWriter, r *http.Request)
}

// NewMockWebhookServer creates a new mock webhook server.
func NewMockWebhookServer(t *testing.T) *MockWebhookServer {
	t.Helper()

	mws := &MockWebhookServer{
		ResponseStatus: http.StatusNoContent,
	}

	mws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		mws.mu.Lock()
		mws.captures = append(mws.captures, WebhookCapture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		mws.mu.Unlock()

		if mws.ResponseFunc != nil {
			mws.ResponseFunc(w, r)
			return
		}

		w.WriteHeader(mws.ResponseStatus)
		if mws.ResponseBody != nil {
			w.Write(mws.ResponseBody) //nolint:errcheck
		}
	}))

	return mws
}

// URL returns the server URL.
func (m *MockWebhookServer) URL() string {
	return m.Server.URL
}

// Close shuts down the server.
func (m *MockWebhookServer) Close() {
	m.Server.Close()
}

// GetCaptures returns all captured requests.
func (m *MockWebhookServer) GetCaptures() []WebhookCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]WebhookCapture, len(m.captures))
	copy(result, m.captures)
	return result
}

// ClearCaptures clears all captured requests.
func (m *MockWebhookServer) ClearCaptures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = nil
}

// WaitForCaptures waits until at least n requests are captured or the
// timeout elapses.
func (m *MockWebhookServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		count := len(m.captures)
		m.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// RateLimitResponse builds the JSON body Discord sends with a 429.
// retryAfter is in seconds and may be fractional.
func RateLimitResponse(retryAfter float64) []byte {
	return []byte(fmt.Sprintf(`{"message":"You are being rate limited.","retry_after":%g,"global":false}`, retryAfter))
}

// RespondRateLimitOnce returns a ResponseFunc that answers the first
// request with 429 and the given retry_after, then 204 for the rest.
func RespondRateLimitOnce(retryAfter float64) func(w http.ResponseWriter, r *http.Request) {
	var once sync.Once
	return func(w http.ResponseWriter, r *http.Request) {
		limited := false
		once.Do(func() { limited = true })
		if limited {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write(RateLimitResponse(retryAfter)) //nolint:errcheck
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
