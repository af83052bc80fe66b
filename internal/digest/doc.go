// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

/*
Package digest turns raw Tautulli items into Discord digest messages.

Two stages:

  - Normalize maps each raw item to a display item: a category (Movies, TV
    Shows, TV Seasons, TV Episodes, Music Albums, Music Tracks), a
    human-readable title built per media type, and the added timestamp.
    Unknown media types are skipped with a WARN.

  - Composer renders display items into webhook payloads, one embed per
    message, grouped by category in a fixed order. Messages page from the
    newest items down, 25 per message; within a message items read oldest
    to newest. Lines accumulate into embed fields split by length, each
    field named after the date range it covers. Oversized embeds are
    trimmed to the newest 80% of their items per attempt, with trimmed
    items carried into the next (older) part. An empty batch becomes a
    single friendly no-new-items message.

Compose is deterministic given its inputs and the injected RNG, which only
picks the empty-state wording.
*/
package digest
