// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

/*
Package config provides centralized configuration management for Nuntius.

Configuration is loaded with Koanf v2 in layers, later layers overriding
earlier ones:

 1. Built-in defaults
 2. Optional YAML config file
 3. Environment variables
 4. Secret files (*_FILE variables)

# Quick Start

	cfg, err := config.Load()
	if err != nil {
	    // Error messages name the offending environment variable
	    log.Fatal(err)
	}
	// cfg.Tautulli.URL, cfg.Digest.LookbackDays, etc. are populated

# Config File

The config file is located via the CONFIG_PATH environment variable, then by
searching config.yaml, config.yml, configs/config.yaml,
/etc/nuntius/config.yaml, and /etc/nuntius/config.yml. A missing file is not
an error; everything can be supplied through the environment.

	tautulli:
	  url: http://tautulli.local:8181
	  api_key: "0123456789abcdef0123456789abcdef"
	discord:
	  webhook_url: https://discord.com/api/webhooks/123/token
	digest:
	  lookback_days: 7
	schedule:
	  cron: "0 9 * * MON"
	  timezone: Europe/London

# Environment Variables

Every setting maps to an environment variable through an explicit table;
variables outside the table are ignored.

	TAUTULLI_URL         TAUTULLI_API_KEY     TAUTULLI_TIMEOUT
	DISCORD_WEBHOOK_URL  DISCORD_TIMEOUT
	LOOKBACK_DAYS        PAGE_SIZE            MAX_ITERATIONS   MAX_PAGE_SIZE
	PLEX_URL             PLEX_SERVER_ID
	RUN_ONCE             CRON_SCHEDULE        SCHEDULE_TIMEZONE
	OPS_ENABLED          OPS_HOST             OPS_PORT         OPS_TIMEOUT
	LOG_LEVEL            LOG_FORMAT           LOG_CALLER

DAYS_BACK and INITIAL_BATCH_SIZE are accepted as aliases for LOOKBACK_DAYS
and PAGE_SIZE for deployments migrating from pre-1.0 releases.

# Docker Secrets

Any variable may instead be supplied as <NAME>_FILE pointing at a file whose
contents hold the value (trailing newline stripped). Secret files take
precedence over every other source:

	services:
	  nuntius:
	    environment:
	      TAUTULLI_API_KEY_FILE: /run/secrets/tautulli_api_key
	    secrets:
	      - tautulli_api_key

# Validation

Load validates the assembled configuration before returning it. Rules are
hand-rolled per section and errors name the environment variable to fix:
TAUTULLI_URL and TAUTULLI_API_KEY are required; LOOKBACK_DAYS must be 1-3650;
CRON_SCHEDULE must parse (and is required unless RUN_ONCE=true);
DISCORD_WEBHOOK_URL must look like a Discord webhook when set.
*/
package config
