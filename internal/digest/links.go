// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package digest

import (
	"fmt"
	"strings"
)

// defaultPlexURL is the hosted Plex web app.
const defaultPlexURL = "https://app.plex.tv"

// LinkBuilder builds Plex deep links for media items. The zero value
// builds no links.
type LinkBuilder struct {
	plexURL  string
	serverID string
}

// NewLinkBuilder returns a builder for the given Plex URL and server
// machine identifier. An empty URL falls back to app.plex.tv; an empty
// server ID disables links entirely.
func NewLinkBuilder(plexURL, serverID string) LinkBuilder {
	if plexURL == "" {
		plexURL = defaultPlexURL
	}
	return LinkBuilder{
		plexURL:  strings.TrimRight(plexURL, "/"),
		serverID: serverID,
	}
}

// Link returns the deep link for a rating key, or "" when the server
// identity or the key is missing. plex.tv hosts use the desktop app URL
// form; self-hosted servers use the local web client form.
func (b LinkBuilder) Link(ratingKey string) string {
	if b.serverID == "" || ratingKey == "" {
		return ""
	}

	key := "%2Flibrary%2Fmetadata%2F" + ratingKey
	if strings.Contains(strings.ToLower(b.plexURL), "plex.tv") {
		return fmt.Sprintf("%s/desktop#!/server/%s/details?key=%s", b.plexURL, b.serverID, key)
	}
	return fmt.Sprintf("%s/web/index.html#!/server/%s/details?key=%s", b.plexURL, b.serverID, key)
}
