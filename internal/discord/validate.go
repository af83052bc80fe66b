// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package discord

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateWebhookURL checks that a URL plausibly points at the Discord
// webhook API: https scheme, a discord.com or discordapp.com host, and a
// /api/webhooks/{id}/{token} path. It catches configuration typos early;
// only Discord itself can tell whether the webhook actually exists.
func ValidateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	if u.Scheme != "https" {
		return fmt.Errorf("scheme must be https, got: %s", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if !isDiscordHost(host) {
		return fmt.Errorf("host must be discord.com or discordapp.com, got: %s", host)
	}

	rest, ok := strings.CutPrefix(u.Path, "/api/webhooks/")
	if !ok {
		return fmt.Errorf("path must start with /api/webhooks/, got: %s", u.Path)
	}

	segments := strings.SplitN(rest, "/", 3)
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return fmt.Errorf("path must include a webhook id and token")
	}

	return nil
}

// isDiscordHost accepts the canonical hosts plus subdomains such as
// canary.discord.com and ptb.discord.com.
func isDiscordHost(host string) bool {
	for _, base := range []string{"discord.com", "discordapp.com"} {
		if host == base || strings.HasSuffix(host, "."+base) {
			return true
		}
	}
	return false
}
