// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"configs/config.yaml",
	"/etc/nuntius/config.yaml",
	"/etc/nuntius/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Tautulli: TautulliConfig{
			URL:     "",
			APIKey:  "",
			Timeout: 10 * time.Second,
		},
		Discord: DiscordConfig{
			WebhookURL: "", // Empty means log-only runs, no delivery
			Timeout:    15 * time.Second,
		},
		Digest: DigestConfig{
			LookbackDays:  0, // Required - no default
			PageSize:      0, // 0 means adaptive sizing from the lookback window
			MaxIterations: 10,
			MaxPageSize:   10000,
			PlexURL:       "https://app.plex.tv",
			PlexServerID:  "", // Auto-detected from Tautulli when empty
		},
		Schedule: ScheduleConfig{
			RunOnce:  false,
			Cron:     "",
			Timezone: "", // Empty means system local time
		},
		Ops: OpsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9631,
			Timeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//  4. Secret Files: *_FILE variables pointing at secret files (highest priority)
//
// Precedence is Secret Files > ENV > File > Defaults. The returned Config
// has already passed Validate.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables
	// Transform environment variable names to koanf paths:
	// TAUTULLI_URL -> tautulli.url
	// CRON_SCHEDULE -> schedule.cron
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Layer 4: Resolve *_FILE secret files (Docker secrets pattern)
	if err := applyFileSecrets(k); err != nil {
		return nil, err
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envKeyMappings maps lowercase environment variable names to koanf config
// paths. Every supported variable must appear here: unmapped variables are
// ignored so that unrelated process environment never pollutes the config.
//
// DAYS_BACK and INITIAL_BATCH_SIZE are accepted as aliases for migrating
// deployments that still use the pre-1.0 variable names.
var envKeyMappings = map[string]string{
	// Tautulli connection
	"tautulli_url":     "tautulli.url",
	"tautulli_api_key": "tautulli.api_key",
	"tautulli_timeout": "tautulli.timeout",

	// Discord delivery
	"discord_webhook_url": "discord.webhook_url",
	"discord_timeout":     "discord.timeout",

	// Digest window and fetch sizing
	"lookback_days":      "digest.lookback_days",
	"days_back":          "digest.lookback_days", // legacy alias
	"page_size":          "digest.page_size",
	"initial_batch_size": "digest.page_size", // legacy alias
	"max_iterations":     "digest.max_iterations",
	"max_page_size":      "digest.max_page_size",
	"plex_url":           "digest.plex_url",
	"plex_server_id":     "digest.plex_server_id",

	// Execution mode and schedule
	"run_once":          "schedule.run_once",
	"cron_schedule":     "schedule.cron",
	"schedule_timezone": "schedule.timezone",
	"timezone":          "schedule.timezone",

	// Operational HTTP endpoint
	"ops_enabled": "ops.enabled",
	"ops_host":    "ops.host",
	"ops_port":    "ops.port",
	"ops_timeout": "ops.timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - TAUTULLI_URL -> tautulli.url
//   - LOOKBACK_DAYS -> digest.lookback_days
//   - CRON_SCHEDULE -> schedule.cron
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envKeyMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	return ""
}

// applyFileSecrets resolves the Docker secrets pattern: any supported
// environment variable may instead be supplied as <NAME>_FILE pointing at a
// file whose contents hold the value. File contents override every other
// source. A trailing newline is stripped so that
// `echo "$KEY" > /run/secrets/key` round-trips cleanly.
//
// Example:
//
//	TAUTULLI_API_KEY_FILE=/run/secrets/tautulli_api_key
//	DISCORD_WEBHOOK_URL_FILE=/run/secrets/webhook
func applyFileSecrets(k *koanf.Koanf) error {
	for envKey, configPath := range envKeyMappings {
		fileVar := strings.ToUpper(envKey) + "_FILE"
		secretPath := os.Getenv(fileVar)
		if secretPath == "" {
			continue
		}

		data, err := os.ReadFile(secretPath)
		if err != nil {
			return fmt.Errorf("failed to read secret file %s for %s: %w", secretPath, fileVar, err)
		}

		value := strings.TrimRight(string(data), "\r\n")
		if err := k.Set(configPath, value); err != nil {
			return fmt.Errorf("failed to set %s from %s: %w", configPath, fileVar, err)
		}
	}
	return nil
}
