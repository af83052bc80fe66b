// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package main is the Nuntius entrypoint. Nuntius periodically queries a
// Tautulli instance for recently added Plex media and delivers a digest of
// new items to a Discord webhook.
//
// # Architecture
//
// The process runs in one of two modes selected by SCHEDULE_RUN_ONCE:
//
//   - One-shot: execute a single digest run and exit with a code that
//     reflects the outcome (0 success, 1 error, 130 interrupted). Intended
//     for external schedulers such as cron or Kubernetes CronJobs.
//   - Scheduled (default): run the built-in cron scheduler and the optional
//     ops HTTP server under a suture supervision tree until a shutdown
//     signal arrives.
//
// Initialization order:
//
//  1. Print banner and version
//  2. Load configuration from environment variables (fatal on error)
//  3. Reconfigure logging from the loaded configuration
//  4. Probe Tautulli connectivity (warn only, never fatal)
//  5. Assemble the pipeline: Tautulli source, Discord deliverer, composer,
//     runner
//  6. One-shot: run once and exit; scheduled: start the supervision tree
//
// # Configuration
//
// All configuration comes from environment variables with sane defaults.
// The required settings:
//
//	TAUTULLI_URL          Base URL of the Tautulli instance
//	TAUTULLI_API_KEY      Tautulli API key
//	DISCORD_WEBHOOK_URL   Discord webhook URL (empty enables log-only mode)
//
// See the config package for the full surface, including digest window,
// pagination bounds, cron schedule, timezone, and ops server settings.
//
// # Signal Handling
//
// SIGINT and SIGTERM initiate graceful shutdown: the scheduler finishes or
// abandons the active run via context cancellation, the ops server drains
// in-flight requests, and the process exits 130 to mark the interruption.
//
// # Example Usage
//
//	# Daily digest at 17:00 with the built-in scheduler
//	export TAUTULLI_URL=http://tautulli:8181
//	export TAUTULLI_API_KEY=0123456789abcdef0123456789abcdef
//	export DISCORD_WEBHOOK_URL=https://discord.com/api/webhooks/123/abc
//	export SCHEDULE_CRON="0 17 * * *"
//	nuntius
//
//	# One-shot run covering the last 7 days, driven by external cron
//	export SCHEDULE_RUN_ONCE=true
//	export DIGEST_LOOKBACK_DAYS=7
//	nuntius
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tomtom215/nuntius/internal/api"
	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/digest"
	"github.com/tomtom215/nuntius/internal/discord"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/runner"
	"github.com/tomtom215/nuntius/internal/scheduler"
	"github.com/tomtom215/nuntius/internal/supervisor"
	"github.com/tomtom215/nuntius/internal/tautulli"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/nuntius
var version = "dev"

const banner = `
 _   _              _   _
| \ | |_   _ _ __ | |_(_)_   _ ___
|  \| | | | | '_ \| __| | | | / __|
| |\  | |_| | | | | |_| | |_| \__ \
|_| \_|\__,_|_| |_|\__|_|\__,_|___/
`

// opsShutdownTimeout bounds graceful drain of the ops HTTP server.
const opsShutdownTimeout = 10 * time.Second

func main() {
	// ============================================================
	// Banner and Configuration
	// ============================================================

	// Logs go to stderr, so the banner can use stdout without
	// corrupting JSON log streams.
	fmt.Printf("%s\n", banner)
	fmt.Printf("Nuntius %s\n\n", version)

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("go_version", runtime.Version()).
		Str("tautulli_url", logging.RedactURL(cfg.Tautulli.URL)).
		Int("lookback_days", cfg.Digest.LookbackDays).
		Bool("discord_configured", cfg.Discord.WebhookURL != "").
		Bool("run_once", cfg.Schedule.RunOnce).
		Bool("ops_enabled", cfg.Ops.Enabled).
		Msg("Starting Nuntius")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	// ============================================================
	// Shutdown Signal Handling
	// ============================================================

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// signaled distinguishes operator-initiated shutdown (exit 130)
	// from a tree that stopped on its own (exit 0).
	var signaled atomic.Bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		signaled.Store(true)
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// ============================================================
	// Digest Pipeline
	// ============================================================

	client := tautulli.NewClient(cfg.Tautulli.URL, cfg.Tautulli.APIKey, cfg.Tautulli.Timeout)

	// Startup probe only. Tautulli being down at boot is not fatal:
	// the next scheduled run retries with full backoff.
	if err := client.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to connect to Tautulli (will retry)")
	} else {
		logging.Info().Msg("Connected to Tautulli successfully")
	}

	// The circuit breaker only pays off across repeated runs, so the
	// one-shot path uses the bare client.
	var source runner.Source = client
	if !cfg.Schedule.RunOnce {
		source = tautulli.NewCircuitBreakerClient(client)
	}

	var delivery runner.Deliverer
	if cfg.Discord.WebhookURL != "" {
		delivery = discord.NewClient(cfg.Discord.WebhookURL, cfg.Discord.Timeout)
	} else {
		logging.Warn().Msg("DISCORD_WEBHOOK_URL not set - digests will be logged, not delivered")
	}

	digestRunner := runner.New(source, delivery, digest.NewComposer(nil), runner.Config{
		LookbackDays:  cfg.Digest.LookbackDays,
		PageSize:      cfg.Digest.PageSize,
		MaxIterations: cfg.Digest.MaxIterations,
		MaxPageSize:   cfg.Digest.MaxPageSize,
		PlexURL:       cfg.Digest.PlexURL,
		PlexServerID:  cfg.Digest.PlexServerID,
		OneShot:       cfg.Schedule.RunOnce,
	})

	// ============================================================
	// One-Shot Mode
	// ============================================================

	if cfg.Schedule.RunOnce {
		result := digestRunner.Run(ctx)
		logging.Info().
			Str("run_id", result.RunID).
			Str("outcome", string(result.Outcome)).
			Int("items_found", result.ItemsFound).
			Int("messages_sent", result.MessagesSent).
			Msg("One-shot run finished")
		os.Exit(result.Outcome.ExitCode())
	}

	// ============================================================
	// Scheduled Mode: Supervision Tree
	// ============================================================

	schedule, err := scheduler.Parse(cfg.Schedule.Cron)
	if err != nil {
		logging.Fatal().Err(err).Str("cron", cfg.Schedule.Cron).Msg("Invalid cron expression")
	}

	sched := scheduler.New(digestRunner, schedule, cfg.Schedule.Location())
	logging.Info().
		Str("cron", cfg.Schedule.Cron).
		Str("timezone", cfg.Schedule.Timezone).
		Msg("Scheduler configured")

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDigestService(supervisor.NewSchedulerService(sched))

	if cfg.Ops.Enabled {
		opsServer := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Ops.Host, cfg.Ops.Port),
			Handler:      api.NewServer(sched, version).Routes(),
			ReadTimeout:  cfg.Ops.Timeout,
			WriteTimeout: cfg.Ops.Timeout,
			IdleTimeout:  60 * time.Second,
		}
		tree.AddOpsService(supervisor.NewHTTPService(opsServer, opsShutdownTimeout))
		logging.Info().Str("addr", opsServer.Addr).Msg("Ops server enabled")
	} else {
		logging.Info().Msg("Ops server disabled")
	}

	go trackUptime(ctx)

	// ============================================================
	// Serve Until Shutdown
	// ============================================================

	errCh := tree.ServeBackground(ctx)
	logging.Info().Msg("Nuntius started successfully")

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervision tree failed")
		}
	}

	// Drain the error channel so the supervisor goroutine can finish.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Error during shutdown")
		}
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop cleanly")
		}
	}

	logging.Info().Msg("Nuntius stopped gracefully")

	if signaled.Load() {
		os.Exit(130)
	}
}

// trackUptime refreshes the uptime gauge until shutdown.
func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
