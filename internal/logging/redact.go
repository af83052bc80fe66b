// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package logging

import (
	"net/url"
	"strings"
)

// sensitiveParams lists query parameter names whose values must never
// appear in log output.
var sensitiveParams = map[string]bool{
	"apikey":        true,
	"api_key":       true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"password":      true,
	"secret":        true,
	"authorization": true,
}

// RedactSecret masks a secret, showing only the first and last 4 characters.
// Example: "abcd1234efgh5678" -> "abcd...5678"
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// RedactURL returns the URL with sensitive query parameter values and
// webhook tokens masked. It is safe to log the result. If the URL cannot
// be parsed the entire string is replaced, never leaked.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "<redacted>"
	}

	q := u.Query()
	changed := false
	for key, values := range q {
		if !sensitiveParams[strings.ToLower(key)] {
			continue
		}
		for i, v := range values {
			values[i] = RedactSecret(v)
		}
		q[key] = values
		changed = true
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	u.Path = redactWebhookPath(u.Path)

	return u.String()
}

// redactWebhookPath masks the token segment of a Discord webhook path.
// Webhook URLs take the form /api/webhooks/{id}/{token}; the token grants
// post access and must not be logged.
func redactWebhookPath(path string) string {
	const marker = "/api/webhooks/"

	idx := strings.Index(path, marker)
	if idx < 0 {
		return path
	}

	rest := strings.TrimPrefix(path[idx:], marker)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return path
	}

	return path[:idx] + marker + parts[0] + "/" + RedactSecret(parts[1])
}

// RedactError removes potential secrets from an error message before
// logging. Messages mentioning credential material are replaced wholesale;
// everything else is truncated to a loggable length.
func RedactError(msg string) string {
	sensitiveWords := []string{
		"apikey",
		"api_key",
		"password",
		"secret",
		"bearer",
		"authorization",
	}

	lower := strings.ToLower(msg)
	for _, word := range sensitiveWords {
		if strings.Contains(lower, word) {
			return "error containing credential material (redacted)"
		}
	}

	return truncateString(msg, 200)
}

// truncateString shortens s to maxLen characters with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
