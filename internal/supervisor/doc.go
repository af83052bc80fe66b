// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

/*
Package supervisor provides process supervision for scheduled mode using
suture v4.

The tree organizes the long-running services into two layers for failure
isolation:

	RootSupervisor ("nuntius")
	├── DigestSupervisor ("digest-layer")
	│   └── SchedulerService
	└── OpsSupervisor ("ops-layer")
	    └── HTTPService (if OPS_ENABLED)

A crash-looping ops server burns its own restart budget without touching
the scheduler, and vice versa. Supervisor events (starts, failures,
restarts, backoff) are logged through the sutureslog adapter; pass
logging.NewSlogLogger() to route them into zerolog.

# Usage

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDigestService(supervisor.NewSchedulerService(sched))
	tree.AddOpsService(supervisor.NewHTTPService(srv, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	// ... wait for shutdown ...
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
	    log.Error().Err(err).Msg("Supervisor stopped")
	}

# Service Interface

Services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: service stopped cleanly, will not be restarted
  - Return error: service crashed, will be restarted with backoff
  - Context canceled: shutdown requested, return promptly

The digest runs themselves are not supervised services. A run is a
bounded unit of work owned by the scheduler; a failed run is recorded
and the next occurrence covers its window, so restart semantics do not
apply.

# Debugging Shutdown Issues

If services do not stop within the timeout:

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("Service didn't stop: %v", svc)
	}
*/
package supervisor
