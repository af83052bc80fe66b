// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package testinfra provides test infrastructure for integration testing
// with containers.
//
// This package uses testcontainers-go to manage Docker containers for
// integration tests, providing realistic testing environments. All of it
// is behind the integration build tag.
//
// # Tautulli Container
//
// TautulliContainer runs a real Tautulli instance for testing the API
// client against the actual server:
//
//	func TestClientAgainstTautulli(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//
//	    ctx := context.Background()
//	    tc, err := testinfra.NewTautulliContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer tc.Terminate(ctx)
//
//	    client := tc.APIClient(10 * time.Second)
//	    if err := client.Ping(ctx); err != nil {
//	        t.Fatal(err)
//	    }
//	}
//
// A fresh container has no Plex server bound to it, so data commands
// return empty results. WithSeedDatabase copies a prepared tautulli.db
// into the container for tests that need history.
//
// # Webhook Capture
//
// MockWebhookServer stands in for a Discord webhook URL. It records every
// delivery and answers 204 like Discord does, with hooks for scripted
// 429 and error responses.
//
// # CI Considerations
//
// These tests require Docker and network access. They skip gracefully
// when Docker is unavailable, and the first run may need to download
// container images.
package testinfra
