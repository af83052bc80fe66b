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
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/nuntius/internal/retry"
)

// apikeyPattern matches the apikey query parameter wherever a full request
// URL leaks into an error string.
var apikeyPattern = regexp.MustCompile(`(apikey=)[^&\s]+`)

// redactCredentials scrubs the API key from a message before it is attached
// to an error. Both the literal key and any apikey= query parameter are
// replaced.
func redactCredentials(msg, apiKey string) string {
	if apiKey != "" {
		msg = strings.ReplaceAll(msg, apiKey, "***")
	}
	return apikeyPattern.ReplaceAllString(msg, "${1}***")
}

// APIError reports a request Tautulli accepted over HTTP but rejected at
// the API level: response.result was not "success". These indicate a bad
// API key or command, so retrying cannot help.
type APIError struct {
	Cmd     string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s request failed: %s", e.Cmd, e.Message)
}

// StatusError reports a non-200 HTTP response. RetryAfter carries the
// server's Retry-After header when one was present.
type StatusError struct {
	Cmd        string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Cmd, e.StatusCode, e.Body)
}

// classifyError decides which failures are worth retrying: transport
// errors, timeouts, HTTP 5xx, and HTTP 429 honoring Retry-After. Envelope
// errors and other 4xx responses fail fast.
func classifyError(err error) retry.Verdict {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retry.Verdict{}
	}

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

	// Transport errors, timeouts, and malformed responses.
	return retry.Verdict{Retryable: true}
}

// errorType coarsely labels a fetch failure for metrics.
func errorType(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "api"
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "http"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "network"
}
