// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tautulli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const testAPIKey = "secret_test_key_0123456789"

// newTestClient builds a client against a mock server with millisecond
// retry delays so failure paths stay fast.
func newTestClient(serverURL string) *Client {
	c := NewClient(serverURL, testAPIKey, 5*time.Second)
	c.policy.BaseDelay = time.Millisecond
	c.policy.MaxDelay = 4 * time.Millisecond
	return c
}

// envelopeHandler returns a handler serving a Tautulli response envelope
// around the given data payload.
func envelopeHandler(result string, message *string, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"response": map[string]any{
				"result":  result,
				"message": message,
				"data":    data,
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// errorHandler returns a handler that replies with an HTTP error status.
func errorHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func stringPtr(s string) *string {
	return &s
}

func TestPing(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     bool
		errContains string
	}{
		{
			name:    "success",
			handler: envelopeHandler("success", nil, map[string]any{"machine_identifier": "abc123"}),
			wantErr: false,
		},
		{
			name:        "invalid API key",
			handler:     envelopeHandler("error", stringPtr("Invalid apikey"), nil),
			wantErr:     true,
			errContains: "Invalid apikey",
		},
		{
			name:        "API error without message",
			handler:     envelopeHandler("error", nil, nil),
			wantErr:     true,
			errContains: "unknown error",
		},
		{
			name:        "HTTP error",
			handler:     errorHandler(http.StatusServiceUnavailable, "upstream down"),
			wantErr:     true,
			errContains: "status 503",
		},
		{
			name: "JSON decode error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{invalid json`))
			},
			wantErr:     true,
			errContains: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server.URL)
			err := client.Ping(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("Ping() error = nil, want error")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Ping() error = %q, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
		})
	}
}

func TestPingSendsCommandAndKey(t *testing.T) {
	var gotCmd, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCmd = r.URL.Query().Get("cmd")
		gotKey = r.URL.Query().Get("apikey")
		envelopeHandler("success", nil, map[string]any{"machine_identifier": "x"})(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if gotCmd != "get_server_identity" {
		t.Errorf("cmd = %q, want %q", gotCmd, "get_server_identity")
	}
	if gotKey != testAPIKey {
		t.Errorf("apikey = %q, want %q", gotKey, testAPIKey)
	}
}

func TestServerIdentity(t *testing.T) {
	server := httptest.NewServer(envelopeHandler("success", nil, map[string]any{
		"machine_identifier": "d34db33fcafe",
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	id, err := client.ServerIdentity(context.Background())
	if err != nil {
		t.Fatalf("ServerIdentity() error = %v", err)
	}
	if id != "d34db33fcafe" {
		t.Errorf("ServerIdentity() = %q, want %q", id, "d34db33fcafe")
	}
}

func TestServerIdentityRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			errorHandler(http.StatusBadGateway, "flaky proxy")(w, r)
			return
		}
		envelopeHandler("success", nil, map[string]any{"machine_identifier": "ok"})(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	id, err := client.ServerIdentity(context.Background())
	if err != nil {
		t.Fatalf("ServerIdentity() error = %v", err)
	}
	if id != "ok" {
		t.Errorf("ServerIdentity() = %q, want %q", id, "ok")
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestServerIdentityDoesNotRetryEnvelopeErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		envelopeHandler("error", stringPtr("Invalid apikey"), nil)(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.ServerIdentity(context.Background()); err == nil {
		t.Fatal("ServerIdentity() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1 (envelope errors must not retry)", calls)
	}
}

func TestErrorsNeverLeakAPIKey(t *testing.T) {
	t.Run("HTTP error body", func(t *testing.T) {
		body := "rejected request for apikey=" + testAPIKey
		server := httptest.NewServer(errorHandler(http.StatusForbidden, body))
		defer server.Close()

		client := newTestClient(server.URL)
		err := client.Ping(context.Background())
		if err == nil {
			t.Fatal("Ping() error = nil, want error")
		}
		if strings.Contains(err.Error(), testAPIKey) {
			t.Errorf("error leaks API key: %q", err)
		}
		if !strings.Contains(err.Error(), "apikey=***") {
			t.Errorf("error = %q, want redacted apikey parameter", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		// A closed server makes client.Do fail with the full request URL,
		// apikey included, inside the transport error.
		server := httptest.NewServer(http.NotFoundHandler())
		serverURL := server.URL
		server.Close()

		client := newTestClient(serverURL)
		err := client.Ping(context.Background())
		if err == nil {
			t.Fatal("Ping() error = nil, want error")
		}
		if strings.Contains(err.Error(), testAPIKey) {
			t.Errorf("error leaks API key: %q", err)
		}
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantAfter     time.Duration
	}{
		{
			name:          "envelope error",
			err:           &APIError{Cmd: "get_recently_added", Message: "Invalid apikey"},
			wantRetryable: false,
		},
		{
			name:          "HTTP 429 with Retry-After",
			err:           &StatusError{Cmd: "get_recently_added", StatusCode: 429, RetryAfter: 3 * time.Second},
			wantRetryable: true,
			wantAfter:     3 * time.Second,
		},
		{
			name:          "HTTP 500",
			err:           &StatusError{Cmd: "get_recently_added", StatusCode: 500},
			wantRetryable: true,
		},
		{
			name:          "HTTP 404",
			err:           &StatusError{Cmd: "get_recently_added", StatusCode: 404},
			wantRetryable: false,
		},
		{
			name:          "transport error",
			err:           context.DeadlineExceeded,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := classifyError(tt.err)
			if verdict.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", verdict.Retryable, tt.wantRetryable)
			}
			if verdict.RetryAfter != tt.wantAfter {
				t.Errorf("RetryAfter = %v, want %v", verdict.RetryAfter, tt.wantAfter)
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "envelope error",
			err:  &APIError{Cmd: "get_recently_added", Message: "Invalid apikey"},
			want: "api",
		},
		{
			name: "wrapped envelope error",
			err:  fmt.Errorf("recently added: %w", &APIError{Cmd: "get_recently_added", Message: "Invalid apikey"}),
			want: "api",
		},
		{
			name: "HTTP status error",
			err:  &StatusError{Cmd: "get_recently_added", StatusCode: 503},
			want: "http",
		},
		{
			name: "DNS timeout",
			err:  &net.DNSError{Err: "i/o timeout", Name: "tautulli.local", IsTimeout: true},
			want: "timeout",
		},
		{
			name: "deadline exceeded",
			err:  fmt.Errorf("get_recently_added: %w", context.DeadlineExceeded),
			want: "timeout",
		},
		{
			name: "plain transport error",
			err:  errors.New("connection refused"),
			want: "network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorType(tt.err); got != tt.want {
				t.Errorf("errorType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "", want: 0},
		{value: "2", want: 2 * time.Second},
		{value: "1.5", want: 1500 * time.Millisecond},
		{value: " 3 ", want: 3 * time.Second},
		{value: "soon", want: 0},
		{value: "-1", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := parseRetryAfter(tt.value); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestNewClientStripsTrailingSlash(t *testing.T) {
	client := NewClient("http://tautulli.local:8181/", "key", 0)
	if client.baseURL != "http://tautulli.local:8181" {
		t.Errorf("baseURL = %q, want trailing slash stripped", client.baseURL)
	}
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want default %v", client.httpClient.Timeout, defaultTimeout)
	}
}

func TestBuildURLEncodesParams(t *testing.T) {
	req := newAPIRequest("get_recently_added").addIntParam("count", 250)
	u := req.buildURL("http://tautulli.local:8181", "k e y")

	if !strings.HasPrefix(u, "http://tautulli.local:8181/api/v2?") {
		t.Errorf("buildURL() = %q, want /api/v2 path", u)
	}
	if !strings.Contains(u, "count=250") {
		t.Errorf("buildURL() = %q, want count param", u)
	}
	if !strings.Contains(u, "apikey=k+e+y") {
		t.Errorf("buildURL() = %q, want encoded apikey", u)
	}
	if !strings.Contains(u, "cmd=get_recently_added") {
		t.Errorf("buildURL() = %q, want cmd param", u)
	}
}

func TestRedactCredentials(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		apiKey string
		want   string
	}{
		{
			name:   "literal key",
			msg:    "request with secret_test_key_0123456789 embedded",
			apiKey: testAPIKey,
			want:   "request with *** embedded",
		},
		{
			name:   "query parameter",
			msg:    "GET http://t/api/v2?apikey=abc123&cmd=x failed",
			apiKey: "",
			want:   "GET http://t/api/v2?apikey=***&cmd=x failed",
		},
		{
			name:   "no credentials",
			msg:    "connection refused",
			apiKey: testAPIKey,
			want:   "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactCredentials(tt.msg, tt.apiKey); got != tt.want {
				t.Errorf("redactCredentials() = %q, want %q", got, tt.want)
			}
		})
	}
}
