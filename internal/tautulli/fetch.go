// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tautulli

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

const (
	// fetchPacing is the minimum spacing between fetch iterations.
	fetchPacing = 200 * time.Millisecond

	// defaultMaxIterations bounds the fetch loop when none is configured.
	defaultMaxIterations = 10

	// defaultMaxPageSize bounds the requested page size when none is
	// configured.
	defaultMaxPageSize = 10000
)

// Window is the time range a digest covers.
type Window struct {
	Start time.Time
	End   time.Time
	Days  int
}

// NewWindow returns the window ending at now and reaching back the given
// number of days.
func NewWindow(days int, now time.Time) Window {
	return Window{
		Start: now.Add(-time.Duration(days) * 24 * time.Hour),
		End:   now,
		Days:  days,
	}
}

// FetchOptions tunes the adaptive fetch loop. A zero PageSize selects a
// size from the window length; zero guardrails fall back to defaults.
type FetchOptions struct {
	PageSize      int
	MaxIterations int
	MaxPageSize   int
}

// FetchStats describes how a fetch went, for logs and the run summary.
type FetchStats struct {
	Iterations       int
	FinalPageSize    int
	RawCount         int
	GuardrailTripped bool
}

// batchParams picks the initial page size and growth increment for a
// lookback window. Short windows start small. An explicit override is used
// for both.
func batchParams(days, override int) (initial, increment int) {
	if override > 0 {
		return override, override
	}
	switch {
	case days <= 7:
		return 100, 100
	case days <= 30:
		return 200, 200
	default:
		return 500, 500
	}
}

// FetchRecentlyAdded returns every item added within the window, newest
// first.
//
// get_recently_added pages from the newest item and has no time filter, so
// the loop requests a growing count until the oldest returned item predates
// the window start or the source runs out. Each response is a superset of
// the previous one and replaces it. Two guardrails bound the loop: when
// iterations would exceed MaxIterations or the page size would exceed
// MaxPageSize, the partial result is returned with GuardrailTripped set.
// Items are filtered against the window start, inclusive.
func (c *Client) FetchRecentlyAdded(ctx context.Context, window Window, opts FetchOptions) ([]Item, FetchStats, error) {
	start := time.Now()
	log := logging.Ctx(ctx)

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = defaultMaxPageSize
	}

	pageSize, increment := batchParams(window.Days, opts.PageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	cutoff := window.Start.Unix()

	// The first Wait consumes the limiter's initial token without blocking;
	// every later iteration is spaced by at least fetchPacing.
	limiter := rate.NewLimiter(rate.Every(fetchPacing), 1)

	var (
		items []Item
		stats FetchStats
	)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, stats, err
		}

		stats.Iterations++

		page, err := c.recentlyAdded(ctx, pageSize)
		if err != nil {
			metrics.RecordFetchError(errorType(err))
			return nil, stats, err
		}
		items = page

		log.Info().
			Int("iteration", stats.Iterations).
			Int("page_size", pageSize).
			Int("fetched", len(page)).
			Msg("Fetch iteration complete")

		if len(page) == 0 {
			log.Debug().Int("iteration", stats.Iterations).Msg("No recently added items returned")
			break
		}

		if len(page) < pageSize {
			log.Debug().
				Int("iteration", stats.Iterations).
				Int("returned", len(page)).
				Int("requested", pageSize).
				Msg("Source exhausted, every item retrieved")
			break
		}

		oldest := page[len(page)-1].AddedAtUnix()
		if oldest < cutoff {
			log.Debug().
				Int("iteration", stats.Iterations).
				Int64("oldest_added_at", oldest).
				Msg("Lookback window covered")
			break
		}

		// The oldest item is still inside the window; grow the request.
		if stats.Iterations >= maxIterations {
			log.Warn().
				Int("iterations", stats.Iterations).
				Int("page_size", pageSize).
				Msg("Iteration guardrail reached, window may be partial")
			stats.GuardrailTripped = true
			break
		}
		if pageSize+increment > maxPageSize {
			log.Warn().
				Int("page_size", pageSize).
				Int("max_page_size", maxPageSize).
				Msg("Page size guardrail reached, window may be partial")
			stats.GuardrailTripped = true
			break
		}
		pageSize += increment
	}

	stats.FinalPageSize = pageSize
	stats.RawCount = len(items)

	filtered := filterWindow(items, cutoff)

	log.Info().
		Int("iterations", stats.Iterations).
		Int("page_size", pageSize).
		Int("fetched", stats.RawCount).
		Int("in_window", len(filtered)).
		Bool("guardrail_tripped", stats.GuardrailTripped).
		Msg("Recently added fetch complete")

	metrics.RecordFetch(time.Since(start), stats.Iterations, pageSize, len(filtered), stats.GuardrailTripped)
	return filtered, stats, nil
}

// filterWindow keeps items whose added_at falls inside the window,
// inclusive of the start boundary. Order is preserved.
func filterWindow(items []Item, cutoff int64) []Item {
	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if item.AddedAtUnix() >= cutoff {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
