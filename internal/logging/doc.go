// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package logging provides centralized zerolog-based structured logging for Nuntius.
//
// This package implements a unified logging layer using zerolog, providing
// zero-allocation structured JSON logging for production and human-readable
// console output for development.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production (machine-parseable)
//   - Console output format for development (human-readable)
//   - Run-scoped logging with run ID propagation through context
//   - slog adapter for Suture v4 integration
//   - Redaction helpers so API keys and webhook tokens never reach log output
//
// # Quick Start
//
//	import "github.com/tomtom215/nuntius/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Caller: false,
//	})
//
//	// Log messages with structured fields
//	logging.Info().Int("items", count).Msg("Fetch complete")
//	logging.Error().Err(err).Str("category", name).Msg("Delivery failed")
//
//	// Run-scoped logging
//	logging.Ctx(ctx).Info().Msg("Composing digest")
//
// # Configuration
//
// Environment Variables (read by the config package):
//
//	LOG_LEVEL  - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT - Output format: json, console (default: json)
//	LOG_CALLER - Include caller file:line: true, false (default: false)
//
// Programmatic Configuration:
//
//	logging.Init(logging.Config{
//	    Level:     "debug",    // trace, debug, info, warn, error, fatal
//	    Format:    "console",  // json or console
//	    Caller:    true,       // Include caller info
//	    Timestamp: true,       // Include timestamps
//	    Output:    os.Stderr,  // Output writer
//	})
//
// # Log Levels
//
// Supported log levels (from most to least verbose):
//
//	trace  - Very detailed diagnostic information
//	debug  - Detailed diagnostic information
//	info   - General operational information (default)
//	warn   - Warning conditions that should be addressed
//	error  - Error conditions requiring attention
//	fatal  - Fatal errors that terminate the program
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	// Good - structured, searchable, efficient
//	logging.Info().
//	    Str("category", category).
//	    Int("count", itemCount).
//	    Dur("elapsed", duration).
//	    Msg("Items composed")
//
//	// Avoid - unstructured, harder to parse
//	logging.Info().Msgf("Composed %d items for %s in %v", itemCount, category, duration)
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	fetchLogger := logging.WithComponent("tautulli")
//	fetchLogger.Info().Msg("Starting fetch")
//	fetchLogger.Error().Err(err).Msg("Fetch failed")
//
// # Run-Scoped Logging
//
// Each digest run carries a short run ID through its context, so the
// lines from fetch, compose, and delivery of one run can be correlated:
//
//	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
//	logging.Ctx(ctx).Info().Msg("Run started")
//
// # slog Adapter
//
// The package provides an slog adapter for libraries that require slog.Logger:
//
//	slogLogger := logging.NewSlogLogger()
//	// Use slogLogger with Suture or other slog-compatible libraries
//
// # Redaction
//
// Never log raw request URLs or configuration values that embed
// credentials. Use the redaction helpers instead:
//
//	logging.Debug().Str("url", logging.RedactURL(requestURL)).Msg("Requesting")
//
// # Output Formats
//
// JSON Format (Production):
//
//	{"level":"info","time":"2026-01-03T10:30:00Z","message":"Digest sent","messages":2}
//
// Console Format (Development):
//
//	10:30:00 INF Digest sent messages=2
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
//
// # Testing
//
// Create test loggers that capture output:
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
//	output := buf.String()
//
// # See Also
//
//   - github.com/rs/zerolog: Underlying logging library
//   - internal/supervisor: Service tree that logs through the slog adapter
package logging
