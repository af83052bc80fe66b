// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package config

import (
	"time"
)

// Config holds all application configuration, organized by component.
// Values are loaded in layers (defaults, optional YAML file, environment
// variables, secret files) by Load.
type Config struct {
	Tautulli TautulliConfig `koanf:"tautulli"`
	Discord  DiscordConfig  `koanf:"discord"`
	Digest   DigestConfig   `koanf:"digest"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Ops      OpsConfig      `koanf:"ops"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TautulliConfig holds the Tautulli API connection settings.
//
// Environment variables:
//   - TAUTULLI_URL: Base URL of the Tautulli instance, e.g. http://localhost:8181 (required)
//   - TAUTULLI_API_KEY: API key from Tautulli Settings > Web Interface (required)
//   - TAUTULLI_TIMEOUT: Per-request HTTP timeout (default: 10s)
type TautulliConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// DiscordConfig holds the Discord webhook delivery settings.
//
// Environment variables:
//   - DISCORD_WEBHOOK_URL: Webhook URL for digest delivery. When empty, runs
//     execute in log-only mode and skip delivery entirely.
//   - DISCORD_TIMEOUT: Per-request HTTP timeout (default: 15s)
type DiscordConfig struct {
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`
}

// DigestConfig controls the lookback window, fetch sizing, and deep links.
//
// Environment variables:
//   - LOOKBACK_DAYS: How many days back to include in a digest (required, 1-3650)
//   - PAGE_SIZE: Fixed Tautulli fetch page size; 0 selects the adaptive
//     strategy that sizes pages from the lookback window (default: 0)
//   - MAX_ITERATIONS: Safety cap on fetch iterations per run (default: 10)
//   - MAX_PAGE_SIZE: Safety cap on a single fetch page (default: 10000)
//   - PLEX_URL: Plex base URL used to build item deep links (default: https://app.plex.tv)
//   - PLEX_SERVER_ID: Plex machine identifier for deep links; auto-detected
//     from Tautulli when unset
type DigestConfig struct {
	LookbackDays  int    `koanf:"lookback_days"`
	PageSize      int    `koanf:"page_size"`
	MaxIterations int    `koanf:"max_iterations"`
	MaxPageSize   int    `koanf:"max_page_size"`
	PlexURL       string `koanf:"plex_url"`
	PlexServerID  string `koanf:"plex_server_id"`
}

// ScheduleConfig selects between one-shot and scheduled execution.
//
// Environment variables:
//   - RUN_ONCE: Execute a single digest run and exit (default: false)
//   - CRON_SCHEDULE: Five-field cron expression; required unless RUN_ONCE=true
//   - SCHEDULE_TIMEZONE: IANA timezone the cron expression is evaluated in
//     (default: system local time)
type ScheduleConfig struct {
	RunOnce  bool   `koanf:"run_once"`
	Cron     string `koanf:"cron"`
	Timezone string `koanf:"timezone"`
}

// Location resolves the configured timezone. An empty or unset timezone
// falls back to the system local time. Validate guarantees the name parses,
// so errors here only occur on unvalidated configs.
func (c ScheduleConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// OpsConfig controls the operational HTTP endpoint (health, metrics,
// manual trigger). Disabled by default; the digest pipeline does not
// depend on it.
//
// Environment variables:
//   - OPS_ENABLED: Serve the operational endpoints (default: false)
//   - OPS_HOST: Bind address (default: 127.0.0.1)
//   - OPS_PORT: Listen port (default: 9631)
//   - OPS_TIMEOUT: Read/write timeout for ops requests (default: 15s)
type OpsConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig controls log output.
//
// Environment variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line in log lines (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
