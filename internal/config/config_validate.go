// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/nuntius/internal/discord"
	"github.com/tomtom215/nuntius/internal/scheduler"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateTautulli(); err != nil {
		return err
	}

	if err := c.validateDiscord(); err != nil {
		return err
	}

	if err := c.validateDigest(); err != nil {
		return err
	}

	if err := c.validateSchedule(); err != nil {
		return err
	}

	if err := c.validateOps(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateTautulli validates the Tautulli connection settings
func (c *Config) validateTautulli() error {
	if c.Tautulli.URL == "" {
		return fmt.Errorf("TAUTULLI_URL is required")
	}
	if err := validateHTTPURL(c.Tautulli.URL, "TAUTULLI_URL"); err != nil {
		return fmt.Errorf("TAUTULLI_URL is invalid: %w", err)
	}

	if c.Tautulli.APIKey == "" {
		return fmt.Errorf("TAUTULLI_API_KEY is required")
	}
	if len(c.Tautulli.APIKey) < 16 {
		return fmt.Errorf("TAUTULLI_API_KEY appears invalid (too short, expected 16+ characters)")
	}

	return validateTimeout(c.Tautulli.Timeout, "TAUTULLI_TIMEOUT")
}

// validateDiscord validates the webhook settings. An empty webhook URL is
// valid and selects log-only runs.
func (c *Config) validateDiscord() error {
	if c.Discord.WebhookURL != "" {
		if err := discord.ValidateWebhookURL(c.Discord.WebhookURL); err != nil {
			return fmt.Errorf("DISCORD_WEBHOOK_URL is invalid: %w", err)
		}
	}

	return validateTimeout(c.Discord.Timeout, "DISCORD_TIMEOUT")
}

// validateDigest validates the lookback window and fetch sizing
func (c *Config) validateDigest() error {
	if c.Digest.LookbackDays < 1 {
		return fmt.Errorf("LOOKBACK_DAYS is required and must be at least 1")
	}
	if c.Digest.LookbackDays > 3650 {
		return fmt.Errorf("LOOKBACK_DAYS must be between 1 and 3650 days, got %d", c.Digest.LookbackDays)
	}

	if c.Digest.MaxIterations < 1 {
		return fmt.Errorf("MAX_ITERATIONS must be at least 1, got %d", c.Digest.MaxIterations)
	}
	if c.Digest.MaxPageSize < 1 {
		return fmt.Errorf("MAX_PAGE_SIZE must be at least 1, got %d", c.Digest.MaxPageSize)
	}

	if c.Digest.PageSize < 0 {
		return fmt.Errorf("PAGE_SIZE must not be negative, got %d", c.Digest.PageSize)
	}
	if c.Digest.PageSize > c.Digest.MaxPageSize {
		return fmt.Errorf("PAGE_SIZE must not exceed MAX_PAGE_SIZE (%d), got %d", c.Digest.MaxPageSize, c.Digest.PageSize)
	}

	if c.Digest.PlexURL != "" {
		if err := validateHTTPURL(c.Digest.PlexURL, "PLEX_URL"); err != nil {
			return fmt.Errorf("PLEX_URL is invalid: %w", err)
		}
	}

	return nil
}

// validateSchedule validates the execution mode and cron expression
func (c *Config) validateSchedule() error {
	if !c.Schedule.RunOnce && c.Schedule.Cron == "" {
		return fmt.Errorf("CRON_SCHEDULE is required when RUN_ONCE=false: either set RUN_ONCE=true or provide a schedule")
	}

	if c.Schedule.Cron != "" {
		if _, err := scheduler.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("CRON_SCHEDULE is invalid: %w", err)
		}
	}

	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("SCHEDULE_TIMEZONE %q is not a valid IANA timezone: %w", c.Schedule.Timezone, err)
		}
	}

	return nil
}

// validateOps validates the operational endpoint settings (only if enabled)
func (c *Config) validateOps() error {
	if !c.Ops.Enabled {
		return nil
	}

	if c.Ops.Host == "" {
		return fmt.Errorf("OPS_HOST is required when OPS_ENABLED=true")
	}
	if c.Ops.Port < 1 || c.Ops.Port > 65535 {
		return fmt.Errorf("OPS_PORT must be between 1 and 65535, got %d", c.Ops.Port)
	}

	return validateTimeout(c.Ops.Timeout, "OPS_TIMEOUT")
}

// validateLogging validates the log level and format
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got %q)", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Logging.Format)
	}

	return nil
}

// validateTimeout bounds an HTTP timeout to a sane operational range
func validateTimeout(timeout time.Duration, fieldName string) error {
	if timeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", fieldName, timeout)
	}
	if timeout > 5*time.Minute {
		return fmt.Errorf("%s must not exceed 5m, got %s", fieldName, timeout)
	}
	return nil
}
