// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package discord delivers digest payloads to a Discord webhook.
//
// Send posts one payload through the shared backoff executor: rate limits
// (429) wait out the server-specified retry_after, transient server and
// network failures back off exponentially, and payload rejections (400)
// fail immediately with the response body in the log. SendAll paces
// multi-part digests at least half a second apart so bursts of parts do
// not trip Discord's per-webhook limit in the first place.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/retry"
)

const (
	// defaultTimeout bounds one webhook POST.
	defaultTimeout = 15 * time.Second

	// sendPacing is the minimum gap between consecutive payload posts.
	sendPacing = 500 * time.Millisecond

	// maxErrorBodySize caps how much of an error response body is read.
	maxErrorBodySize = 64 * 1024
)

// StatusError reports a webhook response with a non-success status.
type StatusError struct {
	// StatusCode is the HTTP status Discord returned.
	StatusCode int

	// Body is the response body, truncated to maxErrorBodySize.
	Body string

	// RetryAfter is the server-specified wait on 429 responses.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook delivery failed with status %d: %s", e.StatusCode, e.Body)
}

// classifyError decides which delivery failures are worth retrying: rate
// limits (honoring the server's wait), server errors, and network errors.
// Payload rejections and other client errors are permanent.
func classifyError(err error) retry.Verdict {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return retry.Verdict{Retryable: true, RetryAfter: statusErr.RetryAfter}
		case statusErr.StatusCode >= 500:
			return retry.Verdict{Retryable: true}
		default:
			return retry.Verdict{}
		}
	}
	return retry.Verdict{Retryable: true}
}

// errorType buckets a delivery error for metrics.
func errorType(err error) string {
	var statusErr *StatusError
	switch {
	case !errors.As(err, &statusErr):
		return "network"
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusErr.StatusCode == http.StatusBadRequest:
		return "rejected"
	default:
		return "http"
	}
}

// Client posts payloads to one Discord webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
	policy     retry.Policy
	limiter    *rate.Limiter
}

// NewClient creates a webhook client. The timeout bounds each POST;
// zero or negative selects the default.
func NewClient(webhookURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		policy: retry.Policy{
			MaxAttempts:       3,
			BaseDelay:         1 * time.Second,
			MaxDelay:          30 * time.Second,
			PerAttemptTimeout: timeout,
			Classify:          classifyError,
		},
		limiter: rate.NewLimiter(rate.Every(sendPacing), 1),
	}
}

// Send delivers one payload, retrying transient failures per the delivery
// policy.
func (c *Client) Send(ctx context.Context, payload Payload) error {
	return retry.Do(ctx, c.policy, "discord_send", func(ctx context.Context) error {
		return c.post(ctx, payload)
	})
}

// SendAll delivers payloads in order, pacing posts at least sendPacing
// apart. It stops at the first payload that fails all attempts and
// returns how many were delivered.
func (c *Client) SendAll(ctx context.Context, payloads []Payload) (int, error) {
	for i, payload := range payloads {
		if err := c.limiter.Wait(ctx); err != nil {
			return i, err
		}
		if err := c.Send(ctx, payload); err != nil {
			return i, fmt.Errorf("payload %d/%d: %w", i+1, len(payloads), err)
		}
		logging.Ctx(ctx).Debug().
			Int("part", i+1).
			Int("total", len(payloads)).
			Msg("Delivered webhook payload")
	}
	return len(payloads), nil
}

// post makes one webhook POST attempt.
func (c *Client) post(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordDeliveryError("encode")
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		metrics.RecordDeliveryError("network")
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordDeliveryError("network")
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordDelivery(strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil
	}

	respBody := readBodyForError(resp.Body)
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	metrics.RecordDeliveryError(errorType(statusErr))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		statusErr.RetryAfter = parseRetryAfter(respBody, resp.Header.Get("Retry-After"))
		logging.Ctx(ctx).Warn().
			Dur("retry_after", statusErr.RetryAfter).
			Msg("Rate limited by Discord")
	case http.StatusBadRequest:
		logging.Ctx(ctx).Error().
			Int("status", resp.StatusCode).
			Str("response", respBody).
			Msg("Discord rejected the payload")
	}

	return statusErr
}

// readBodyForError reads a response body for inclusion in an error,
// capped at maxErrorBodySize.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return strings.TrimSpace(string(body))
}

// rateLimitBody is the JSON Discord sends with a 429. retry_after is in
// seconds and may be fractional.
type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// parseRetryAfter extracts the wait from a 429 response, preferring the
// JSON body over the Retry-After header. Returns zero when neither
// parses, leaving the backoff schedule in charge.
func parseRetryAfter(body, header string) time.Duration {
	var rl rateLimitBody
	if err := json.Unmarshal([]byte(body), &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}

	if header == "" {
		return 0
	}
	d, err := time.ParseDuration(strings.TrimSpace(header) + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d
}
