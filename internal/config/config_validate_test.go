// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a minimal configuration that passes Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Tautulli.URL = "http://localhost:8181"
	cfg.Tautulli.APIKey = "abcdef0123456789abcdef"
	cfg.Digest.LookbackDays = 7
	cfg.Schedule.RunOnce = true
	return cfg
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateScheduledMode(t *testing.T) {
	cfg := validConfig()
	cfg.Schedule.RunOnce = false
	cfg.Schedule.Cron = "0 9 * * MON"
	cfg.Schedule.Timezone = "Europe/London"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "tautulli url with query params",
			mutate:  func(c *Config) { c.Tautulli.URL = "http://host:8181?apikey=x" },
			wantErr: "query parameters",
		},
		{
			name:    "tautulli url bad scheme",
			mutate:  func(c *Config) { c.Tautulli.URL = "ftp://host:8181" },
			wantErr: "scheme must be http or https",
		},
		{
			name:    "zero tautulli timeout",
			mutate:  func(c *Config) { c.Tautulli.Timeout = 0 },
			wantErr: "TAUTULLI_TIMEOUT must be positive",
		},
		{
			name:    "excessive discord timeout",
			mutate:  func(c *Config) { c.Discord.Timeout = 10 * time.Minute },
			wantErr: "DISCORD_TIMEOUT must not exceed 5m",
		},
		{
			name:    "webhook on wrong host",
			mutate:  func(c *Config) { c.Discord.WebhookURL = "https://example.com/api/webhooks/1/t" },
			wantErr: "DISCORD_WEBHOOK_URL is invalid",
		},
		{
			name:    "zero max iterations",
			mutate:  func(c *Config) { c.Digest.MaxIterations = 0 },
			wantErr: "MAX_ITERATIONS must be at least 1",
		},
		{
			name:    "negative page size",
			mutate:  func(c *Config) { c.Digest.PageSize = -1 },
			wantErr: "PAGE_SIZE must not be negative",
		},
		{
			name:    "plex url with fragment",
			mutate:  func(c *Config) { c.Digest.PlexURL = "https://plex.local/#top" },
			wantErr: "PLEX_URL is invalid",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT must be json or console",
		},
		{
			name: "ops enabled without host",
			mutate: func(c *Config) {
				c.Ops.Enabled = true
				c.Ops.Host = ""
			},
			wantErr: "OPS_HOST is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOpsDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Ops.Enabled = false
	cfg.Ops.Port = 0 // Invalid, but ops is disabled

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil when ops disabled", err)
	}
}

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"plain http", "http://localhost:8181", ""},
		{"https", "https://tautulli.example.com", ""},
		{"trailing slash", "http://host:8181/", ""},
		{"reverse proxy subpath", "http://host/tautulli", ""},
		{"bad scheme", "ftp://host", "scheme must be http or https"},
		{"missing host", "http://", "host is required"},
		{"query params", "http://host?apikey=secret", "query parameters"},
		{"fragment", "http://host/#section", "fragment"},
		{"unparseable", "://nonsense", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPURL(tt.url, "TEST_URL")
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateHTTPURL(%q) error = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateHTTPURL(%q) expected error, got nil", tt.url)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateHTTPURL(%q) error = %v, want substring %q", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestScheduleLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     *time.Location
	}{
		{"empty falls back to local", "", time.Local},
		{"utc", "UTC", time.UTC},
		{"invalid falls back to local", "Not/AZone", time.Local},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := ScheduleConfig{Timezone: tt.timezone}
			if got := sc.Location(); got != tt.want {
				t.Errorf("Location() = %v, want %v", got, tt.want)
			}
		})
	}
}
