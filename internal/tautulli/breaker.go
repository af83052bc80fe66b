// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tautulli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// CircuitBreakerClient wraps a Source with circuit breaker protection so
// scheduled runs against a down server are rejected immediately instead of
// walking the full retry schedule every time.
type CircuitBreakerClient struct {
	source Source
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient wraps source with a circuit breaker:
// - Opens after a 60% failure rate across at least 10 requests
// - Stays open for 2 minutes before probing half-open
// - Allows 3 requests in half-open state
func NewCircuitBreakerClient(source Source) *CircuitBreakerClient {
	cbName := "tautulli-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{
		source: source,
		cb:     cb,
		name:   cbName,
	}
}

// execute runs one call through the circuit breaker and records the
// outcome. An open circuit or a saturated half-open state surfaces as a
// rejection.
func (cbc *CircuitBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a circuit breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to a numeric metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// fetchResult bundles the two fetch return values through the breaker.
type fetchResult struct {
	items []Item
	stats FetchStats
}

// Ping verifies connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (any, error) {
		return nil, cbc.source.Ping(ctx)
	})
	return err
}

// ServerIdentity returns the Plex machine identifier with circuit breaker
// protection.
func (cbc *CircuitBreakerClient) ServerIdentity(ctx context.Context) (string, error) {
	return castResult[string](cbc.execute(func() (any, error) {
		return cbc.source.ServerIdentity(ctx)
	}))
}

// FetchRecentlyAdded runs the adaptive fetch with circuit breaker
// protection. The whole fetch counts as one request; a rejection returns
// zero stats.
func (cbc *CircuitBreakerClient) FetchRecentlyAdded(ctx context.Context, window Window, opts FetchOptions) ([]Item, FetchStats, error) {
	res, err := castResult[fetchResult](cbc.execute(func() (any, error) {
		items, stats, err := cbc.source.FetchRecentlyAdded(ctx, window, opts)
		if err != nil {
			return nil, err
		}
		return fetchResult{items: items, stats: stats}, nil
	}))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordFetchError("breaker_open")
		}
		return nil, FetchStats{}, err
	}
	return res.items, res.stats, nil
}
