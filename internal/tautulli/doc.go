// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

/*
Package tautulli implements the HTTP client for the Tautulli API and the
adaptive fetch loop that discovers every item added within a lookback window.

Key Components:

  - Client: HTTP client for the Tautulli v2 API with retry and redaction
  - FetchRecentlyAdded: iterative fetch that grows the page size until the
    window is covered, bounded by iteration and page-size guardrails
  - CircuitBreakerClient: wraps a Source with failure detection so scheduled
    runs stop hammering a down server

Fetch Strategy:

Tautulli's get_recently_added has no time filter, only a count. The fetch
loop asks for a page sized from the lookback window, checks whether the
oldest returned item predates the window start, and grows the request until
it does (or the source is exhausted). Each response is a superset of the
previous one, so only the final page is kept. Items are then filtered
client-side against the window start.

All request paths run through the shared backoff executor in internal/retry.
Envelope errors (response.result != "success") mean a bad API key or command
and are never retried; network errors, timeouts, and 5xx responses are.

Every error string is scrubbed of the API key before it leaves this package.

Thread Safety: Client is safe for concurrent use.
*/
package tautulli
