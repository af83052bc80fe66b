// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package retry provides the shared backoff executor used for all upstream
// calls. Both the Tautulli client and the Discord delivery client run their
// requests through it; only the classification of what is worth retrying
// differs between them.
//
// The executor retries on an exponential schedule (BaseDelay doubling per
// attempt, capped at MaxDelay) unless the error's Verdict carries a
// server-specified RetryAfter, which is honored verbatim. Non-retryable
// errors propagate immediately. When all attempts fail the caller receives
// an *ExhaustedError that unwraps to the last underlying error.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// Verdict is the result of classifying an error.
type Verdict struct {
	// Retryable indicates the operation may succeed on a later attempt.
	Retryable bool

	// RetryAfter, when positive, is a server-specified wait that overrides
	// the backoff schedule for the next attempt.
	RetryAfter time.Duration
}

// Classifier decides whether an error is worth retrying.
type Classifier func(error) Verdict

// Policy controls the retry behavior for one class of operation.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// PerAttemptTimeout bounds each individual attempt. Zero means the
	// attempt runs under the caller's context alone.
	PerAttemptTimeout time.Duration

	// Classify decides retryability. A nil classifier retries nothing.
	Classify Classifier
}

// DefaultPolicy returns the baseline policy: 3 attempts, 1s base delay
// doubling to a 30s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// normalized returns the policy with zero values replaced by defaults.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// delayFor computes the wait before the given attempt (2-based: the first
// retry). A positive server-specified RetryAfter wins over the schedule.
func (p Policy) delayFor(attempt int, verdict Verdict) time.Duration {
	if verdict.RetryAfter > 0 {
		return verdict.RetryAfter
	}

	shift := uint(attempt - 2)
	if shift > 30 {
		return p.MaxDelay
	}

	delay := p.BaseDelay * (1 << shift)
	if delay <= 0 || delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// ExhaustedError reports that an operation failed all retry attempts.
type ExhaustedError struct {
	// Operation names the failing operation for logs and metrics.
	Operation string

	// Attempts is the number of attempts made.
	Attempts int

	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

// Unwrap returns the error from the final attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// sleep waits for the given duration or until the context is canceled.
// It is a package variable so tests can assert the schedule without
// real waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op under the policy, retrying per the classifier's verdicts.
func Do(ctx context.Context, policy Policy, operation string, op func(context.Context) error) error {
	_, err := DoValue(ctx, policy, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue runs op under the policy and returns its value on success.
//
// Attempt numbering is 1-based. Before each retry the executor logs a WARN
// with the attempt number and wait, and the wait is context-cancellable
// with the context error winning.
func DoValue[T any](ctx context.Context, policy Policy, operation string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	policy = policy.normalized()

	var (
		lastErr     error
		lastVerdict Verdict
	)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.delayFor(attempt, lastVerdict)
			logging.Ctx(ctx).Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Int("max_attempts", policy.MaxAttempts).
				Dur("wait", delay).
				Err(lastErr).
				Msg("Retrying after failure")
			metrics.RecordRetryAttempt(operation)

			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.PerAttemptTimeout)
		}

		value, err := op(attemptCtx)
		cancel()

		if err == nil {
			return value, nil
		}
		lastErr = err

		// Caller cancellation is not a failure to classify.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		var verdict Verdict
		if policy.Classify != nil {
			verdict = policy.Classify(err)
		}
		if !verdict.Retryable {
			return zero, err
		}
		lastVerdict = verdict
	}

	metrics.RecordRetryExhaustion(operation)
	return zero, &ExhaustedError{Operation: operation, Attempts: policy.MaxAttempts, Err: lastErr}
}
