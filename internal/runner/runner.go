// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package runner orchestrates one digest run: fetch from Tautulli,
// normalize, compose, deliver to Discord. Run never returns a raw
// error; every failure is logged and classified into a RunResult so
// callers (the scheduler, the one-shot entrypoint, the ops API) only
// ever branch on the outcome.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/nuntius/internal/digest"
	"github.com/tomtom215/nuntius/internal/discord"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/tautulli"
)

// itemLogCap bounds per-category item logging at info level. The full
// list is always available at debug.
const itemLogCap = 10

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeSuccess means the digest was retrieved and, when configured,
	// delivered. A delivery failure on a scheduled run still counts as
	// success; the next occurrence covers the same window.
	OutcomeSuccess Outcome = "success"

	// OutcomeError means the run failed in a way worth alerting on.
	OutcomeError Outcome = "error"

	// OutcomeInterrupted means the run was canceled by shutdown.
	OutcomeInterrupted Outcome = "interrupted"
)

// ExitCode maps an outcome to the process exit contract: 0 for success,
// 1 for error, 130 for interruption (128 + SIGINT).
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomeInterrupted:
		return 130
	default:
		return 1
	}
}

// RunResult is the classified result of one digest run.
type RunResult struct {
	// RunID tags every log line of the run.
	RunID string

	// Outcome is the classification callers branch on.
	Outcome Outcome

	// ItemsFound is the number of items retained for the digest.
	ItemsFound int

	// MessagesSent is the number of webhook payloads delivered.
	MessagesSent int

	// Duration is the wall time of the whole run.
	Duration time.Duration
}

// Source is the slice of the Tautulli client a run needs.
type Source interface {
	ServerIdentity(ctx context.Context) (string, error)
	FetchRecentlyAdded(ctx context.Context, window tautulli.Window, opts tautulli.FetchOptions) ([]tautulli.Item, tautulli.FetchStats, error)
}

// Deliverer posts composed payloads to their destination.
type Deliverer interface {
	SendAll(ctx context.Context, payloads []discord.Payload) (int, error)
}

// Config carries the runner's settings, copied out of the application
// configuration at startup so the runner stays decoupled from the
// loader.
type Config struct {
	// LookbackDays is the digest window length.
	LookbackDays int

	// PageSize fixes the fetch page size; zero selects adaptive sizing.
	PageSize int

	// MaxIterations caps fetch iterations per run.
	MaxIterations int

	// MaxPageSize caps a single fetch page.
	MaxPageSize int

	// PlexURL is the base URL for item deep links.
	PlexURL string

	// PlexServerID overrides server identity detection when set.
	PlexServerID string

	// OneShot marks a single-run invocation. Delivery failures become
	// run errors instead of warnings, since no later occurrence will
	// cover the window.
	OneShot bool
}

// Runner executes digest runs.
type Runner struct {
	source   Source
	delivery Deliverer
	composer *digest.Composer
	cfg      Config
}

// New creates a runner. A nil delivery puts runs in log-only mode.
func New(source Source, delivery Deliverer, composer *digest.Composer, cfg Config) *Runner {
	return &Runner{
		source:   source,
		delivery: delivery,
		composer: composer,
		cfg:      cfg,
	}
}

// Run executes one digest run over the configured lookback window and
// classifies the result.
func (r *Runner) Run(ctx context.Context) RunResult {
	return r.RunWindow(ctx, 0)
}

// RunWindow executes one digest run over a lookback of the given number
// of days; zero or negative selects the configured default. A run ID
// already on the context (a manual trigger acknowledged over the API)
// is kept; otherwise a fresh one is generated.
func (r *Runner) RunWindow(ctx context.Context, lookbackDays int) RunResult {
	start := time.Now()
	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = logging.GenerateRunID()
		ctx = logging.ContextWithRunID(ctx, runID)
	}
	log := logging.Ctx(ctx)

	metrics.TrackRunInFlight(true)
	defer metrics.TrackRunInFlight(false)

	days := lookbackDays
	if days <= 0 {
		days = r.cfg.LookbackDays
	}

	window := tautulli.NewWindow(days, time.Now())
	log.Info().
		Int("lookback_days", days).
		Time("window_start", window.Start).
		Bool("delivery", r.delivery != nil).
		Msg("Starting digest run")

	result := RunResult{RunID: runID, Outcome: OutcomeSuccess}

	raw, fetchStats, err := r.source.FetchRecentlyAdded(ctx, window, tautulli.FetchOptions{
		PageSize:      r.cfg.PageSize,
		MaxIterations: r.cfg.MaxIterations,
		MaxPageSize:   r.cfg.MaxPageSize,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			result.Outcome = OutcomeInterrupted
			log.Warn().Msg("Run interrupted during fetch")
		} else {
			result.Outcome = OutcomeError
			log.Error().Err(err).Msg("Fetch failed")
		}
		return r.complete(ctx, result, start)
	}

	items, stats := digest.Normalize(ctx, raw, window)
	result.ItemsFound = len(items)
	log.Debug().
		Int("iterations", fetchStats.Iterations).
		Int("final_page_size", fetchStats.FinalPageSize).
		Bool("guardrail_tripped", fetchStats.GuardrailTripped).
		Int("raw", stats.Total).
		Int("skipped", stats.Skipped).
		Int("out_of_range", stats.OutOfRange).
		Int("retained", len(items)).
		Msg("Normalized batch")
	r.logItems(ctx, items)

	var links digest.LinkBuilder
	if len(items) > 0 {
		links = r.links(ctx)
	}

	payloads := r.composer.Compose(ctx, items, links, days, time.Now())

	if r.delivery == nil {
		log.Debug().Int("payloads", len(payloads)).Msg("No webhook configured, skipping delivery")
		return r.complete(ctx, result, start)
	}

	sent, err := r.delivery.SendAll(ctx, payloads)
	result.MessagesSent = sent
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			result.Outcome = OutcomeInterrupted
			log.Warn().Int("sent", sent).Int("total", len(payloads)).Msg("Run interrupted during delivery")
		case r.cfg.OneShot:
			result.Outcome = OutcomeError
			log.Error().Err(err).Int("sent", sent).Int("total", len(payloads)).Msg("Delivery failed")
		default:
			log.Warn().Err(err).Int("sent", sent).Int("total", len(payloads)).
				Msg("Delivery failed, next scheduled run covers the window")
		}
	}

	return r.complete(ctx, result, start)
}

// complete stamps the duration, records metrics, and writes the final
// run summary.
func (r *Runner) complete(ctx context.Context, result RunResult, start time.Time) RunResult {
	result.Duration = time.Since(start)
	metrics.RecordRun(string(result.Outcome), result.Duration, result.ItemsFound)

	logging.Ctx(ctx).Info().
		Str("outcome", string(result.Outcome)).
		Int("items_found", result.ItemsFound).
		Int("messages_sent", result.MessagesSent).
		Dur("duration", result.Duration).
		Msg("Digest run complete")
	return result
}

// logItems logs retained items per category: the first itemLogCap of
// each at info, the rest at debug with a one-line summary of what was
// held back.
func (r *Runner) logItems(ctx context.Context, items []digest.Item) {
	log := logging.Ctx(ctx)

	counts := make(map[digest.Category]int, 6)
	var seen []digest.Category
	for _, item := range items {
		n := counts[item.Category]
		counts[item.Category] = n + 1
		if n == 0 {
			seen = append(seen, item.Category)
		}

		evt := log.Debug()
		if n < itemLogCap {
			evt = log.Info()
		}
		evt.Str("category", string(item.Category)).
			Str("title", item.Title).
			Time("added", item.AddedAt).
			Msg("Recently added")
	}

	for _, category := range seen {
		if over := counts[category] - itemLogCap; over > 0 {
			log.Info().
				Str("category", string(category)).
				Int("more", over).
				Msg("Further items logged at debug level")
		}
	}
}

// links resolves the Plex deep-link builder for this run. A configured
// server id wins; otherwise the id is detected from Tautulli, and a
// detection failure degrades items to plain text.
func (r *Runner) links(ctx context.Context) digest.LinkBuilder {
	serverID := r.cfg.PlexServerID
	if serverID == "" {
		id, err := r.source.ServerIdentity(ctx)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Msg("Plex server id detection failed, items will not be linked")
			return digest.NewLinkBuilder(r.cfg.PlexURL, "")
		}
		serverID = id
	}
	return digest.NewLinkBuilder(r.cfg.PlexURL, serverID)
}
