// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package digest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/tautulli"
)

// Category is the display grouping for one media type.
type Category string

const (
	CategoryMovies   Category = "Movies"
	CategoryShows    Category = "TV Shows"
	CategorySeasons  Category = "TV Seasons"
	CategoryEpisodes Category = "TV Episodes"
	CategoryAlbums   Category = "Music Albums"
	CategoryTracks   Category = "Music Tracks"
)

// categoryOrder fixes the order categories appear in a digest.
var categoryOrder = []Category{
	CategoryMovies,
	CategoryShows,
	CategorySeasons,
	CategoryEpisodes,
	CategoryAlbums,
	CategoryTracks,
}

// Item is a normalized media item ready for composition. Title is the
// unescaped display form.
type Item struct {
	Category  Category
	Title     string
	RatingKey string
	AddedAt   time.Time
}

// NormalizeStats counts what normalization did with a raw batch.
type NormalizeStats struct {
	Total      int
	Skipped    int
	OutOfRange int
}

// Normalize maps raw Tautulli items to display items, newest first.
// Unknown media types are skipped with a WARN; items outside the window
// are dropped. The fetch already filters against the window, so a nonzero
// OutOfRange points at a bug upstream.
func Normalize(ctx context.Context, items []tautulli.Item, window tautulli.Window) ([]Item, NormalizeStats) {
	log := logging.Ctx(ctx)
	stats := NormalizeStats{Total: len(items)}
	cutoff := window.Start.Unix()

	normalized := make([]Item, 0, len(items))
	for _, raw := range items {
		ts := raw.AddedAtUnix()
		if ts < cutoff {
			stats.OutOfRange++
			continue
		}

		category, title, ok := displayTitle(raw)
		if !ok {
			log.Warn().
				Str("media_type", raw.MediaType).
				Str("rating_key", raw.RatingKey).
				Msg("Unrecognized media type, item skipped")
			stats.Skipped++
			continue
		}

		normalized = append(normalized, Item{
			Category:  category,
			Title:     title,
			RatingKey: raw.RatingKey,
			AddedAt:   time.Unix(ts, 0),
		})
	}

	sortNewestFirst(normalized)
	return normalized, stats
}

// displayTitle builds the per-type display form of a raw item. The false
// return marks a media type the digest does not carry.
func displayTitle(item tautulli.Item) (Category, string, bool) {
	switch item.MediaType {
	case "movie":
		title := orDefault(item.Title, "Unknown Movie")
		if item.Year != "" {
			return CategoryMovies, fmt.Sprintf("%s (%s)", title, item.Year), true
		}
		return CategoryMovies, title, true

	case "show":
		title := orDefault(item.Title, "Unknown Show")
		if item.Year != "" {
			return CategoryShows, fmt.Sprintf("%s (%s)", title, item.Year), true
		}
		return CategoryShows, fmt.Sprintf("%s (New Series)", title), true

	case "season":
		show := orDefault(item.ParentTitle, "Unknown Show")
		// Tautulli titles seasons "Season N"; fall back to building the
		// same form from the index when the title is missing.
		if item.Title != "" {
			return CategorySeasons, fmt.Sprintf("%s - %s", show, item.Title), true
		}
		return CategorySeasons, fmt.Sprintf("%s - Season %s", show, orDefault(item.MediaIndex, "?")), true

	case "episode":
		show := orDefault(item.GrandparentTitle, "Unknown Show")
		title := orDefault(item.Title, "Unknown Episode")
		season, seasonOK := parseIndex(item.ParentMediaIndex)
		episode, episodeOK := parseIndex(item.MediaIndex)
		if seasonOK && episodeOK {
			return CategoryEpisodes, fmt.Sprintf("%s - S%02dE%02d - %s", show, season, episode, title), true
		}
		// Unparsable index, keep the raw values visible.
		return CategoryEpisodes, fmt.Sprintf("%s - S%sE%s - %s",
			show, orDefault(item.ParentMediaIndex, "?"), orDefault(item.MediaIndex, "?"), title), true

	case "album":
		artist := orDefault(item.ParentTitle, "Unknown Artist")
		album := orDefault(item.Title, "Unknown Album")
		return CategoryAlbums, fmt.Sprintf("%s - %s", artist, album), true

	case "track":
		artist := orDefault(item.GrandparentTitle, "Unknown Artist")
		album := orDefault(item.ParentTitle, "Unknown Album")
		track := orDefault(item.Title, "Unknown Track")
		return CategoryTracks, fmt.Sprintf("%s - %s - %s", artist, album, track), true

	default:
		return "", "", false
	}
}

// parseIndex parses a season or episode index to an int. Missing values
// parse as zero like the "?" placeholder would.
func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// sortNewestFirst orders items by added time descending, keeping the
// incoming order for ties.
func sortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})
}
