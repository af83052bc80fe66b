// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tautulli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/retry"
)

const (
	// apiPath is the Tautulli v2 API endpoint, relative to the base URL.
	apiPath = "/api/v2"

	// maxErrorBodySize caps how much of an error response body is read for
	// diagnostics.
	maxErrorBodySize = 64 * 1024

	// defaultTimeout bounds each HTTP request when none is configured.
	defaultTimeout = 10 * time.Second

	cmdRecentlyAdded  = "get_recently_added"
	cmdServerIdentity = "get_server_identity"
)

// Source is the Tautulli surface the digest pipeline consumes. It is
// satisfied by Client and by CircuitBreakerClient.
type Source interface {
	Ping(ctx context.Context) error
	ServerIdentity(ctx context.Context) (string, error)
	FetchRecentlyAdded(ctx context.Context, window Window, opts FetchOptions) ([]Item, FetchStats, error)
}

// Client talks to the Tautulli v2 API.
//
// Every call except Ping runs through the shared backoff executor: 3
// attempts with a 1s base delay doubling per retry, each attempt bounded by
// the configured timeout. The API key never appears in returned errors.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     retry.Policy
}

// NewClient creates a Tautulli client for the given base URL and API key.
// A non-positive timeout falls back to 10 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		policy: retry.Policy{
			MaxAttempts:       3,
			BaseDelay:         1 * time.Second,
			MaxDelay:          30 * time.Second,
			PerAttemptTimeout: timeout,
			Classify:          classifyError,
		},
	}
}

// apiRequest accumulates query parameters for one API command.
type apiRequest struct {
	cmd    string
	params url.Values
}

func newAPIRequest(cmd string) *apiRequest {
	return &apiRequest{cmd: cmd, params: url.Values{}}
}

func (r *apiRequest) addIntParam(key string, value int) *apiRequest {
	r.params.Set(key, strconv.Itoa(value))
	return r
}

func (r *apiRequest) buildURL(baseURL, apiKey string) string {
	r.params.Set("apikey", apiKey)
	r.params.Set("cmd", r.cmd)
	return fmt.Sprintf("%s%s?%s", baseURL, apiPath, r.params.Encode())
}

// callAPI executes one HTTP round trip for a command and decodes the
// enveloped payload. Failures come back as typed errors for the retry
// classifier, with the API key scrubbed from every path. Transport errors
// are flattened to their redacted string form so the key cannot resurface
// through an unwrap chain.
func callAPI[T any](ctx context.Context, c *Client, req *apiRequest) (T, error) {
	var zero T

	reqURL := req.buildURL(c.baseURL, c.apiKey)

	start := time.Now()
	var callErr error
	defer func() {
		metrics.RecordTautulliCall(req.cmd, time.Since(start), callErr)
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		callErr = fmt.Errorf("failed to create %s request: %s", req.cmd, redactCredentials(err.Error(), c.apiKey))
		return zero, callErr
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		callErr = fmt.Errorf("failed to make %s request: %s", req.cmd, redactCredentials(err.Error(), c.apiKey))
		return zero, callErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		callErr = &StatusError{
			Cmd:        req.cmd,
			StatusCode: resp.StatusCode,
			Body:       redactCredentials(readBodyForError(resp.Body), c.apiKey),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		return zero, callErr
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		callErr = fmt.Errorf("failed to decode %s response: %s", req.cmd, redactCredentials(err.Error(), c.apiKey))
		return zero, callErr
	}

	if env.Response.Result != "success" {
		msg := "unknown error"
		if env.Response.Message != nil && *env.Response.Message != "" {
			msg = *env.Response.Message
		}
		callErr = &APIError{Cmd: req.cmd, Message: redactCredentials(msg, c.apiKey)}
		return zero, callErr
	}

	return env.Response.Data, nil
}

// readBodyForError reads up to maxErrorBodySize bytes of an error response
// for inclusion in the error message.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if d, err := time.ParseDuration(strings.TrimSpace(value) + "s"); err == nil && d >= 0 {
		return d
	}
	return 0
}

// recentlyAdded fetches one page of the most recent additions, retrying per
// the client policy.
func (c *Client) recentlyAdded(ctx context.Context, count int) ([]Item, error) {
	req := newAPIRequest(cmdRecentlyAdded).addIntParam("count", count)
	data, err := retry.DoValue(ctx, c.policy, cmdRecentlyAdded, func(ctx context.Context) (recentlyAddedData, error) {
		return callAPI[recentlyAddedData](ctx, c, req)
	})
	if err != nil {
		return nil, err
	}
	return data.RecentlyAdded, nil
}

// ServerIdentity returns the machine identifier of the Plex server Tautulli
// is bound to, used for app.plex.tv deep links.
func (c *Client) ServerIdentity(ctx context.Context) (string, error) {
	req := newAPIRequest(cmdServerIdentity)
	data, err := retry.DoValue(ctx, c.policy, cmdServerIdentity, func(ctx context.Context) (serverIdentityData, error) {
		return callAPI[serverIdentityData](ctx, c, req)
	})
	if err != nil {
		return "", err
	}
	return data.MachineIdentifier, nil
}

// Ping verifies Tautulli is reachable and the API key is accepted. It makes
// a single attempt; a startup probe should fail fast rather than walk the
// retry schedule.
func (c *Client) Ping(ctx context.Context) error {
	_, err := callAPI[serverIdentityData](ctx, c, newAPIRequest(cmdServerIdentity))
	return err
}
