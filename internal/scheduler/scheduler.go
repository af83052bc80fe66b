// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/runner"
)

// ErrRunActive reports a trigger that arrived while a run was in flight.
var ErrRunActive = errors.New("a digest run is already active")

// DigestRunner executes one digest run and classifies the result.
// RunWindow overrides the lookback for manual triggers; zero selects
// the configured default.
type DigestRunner interface {
	Run(ctx context.Context) runner.RunResult
	RunWindow(ctx context.Context, lookbackDays int) runner.RunResult
}

// RunSummary captures the last completed run for the status snapshot.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Outcome      string    `json:"outcome"`
	ItemsFound   int       `json:"items_found"`
	MessagesSent int       `json:"messages_sent"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Schedule string      `json:"schedule"`
	Timezone string      `json:"timezone"`
	Running  bool        `json:"running"`
	NextRun  time.Time   `json:"next_run"`
	LastRun  *RunSummary `json:"last_run,omitempty"`
}

// Scheduler fires digest runs on a cron schedule. Occurrences and manual
// triggers share one gate: whatever arrives while a run is active is
// discarded, never queued, and the next occurrence is always computed
// after the current run completes. Missed occurrences are not replayed.
type Scheduler struct {
	runner   DigestRunner
	schedule *Schedule
	loc      *time.Location

	running  atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	nextRun time.Time
	lastRun *RunSummary
}

// New creates a scheduler. A nil location evaluates the schedule in
// system local time.
func New(r DigestRunner, schedule *Schedule, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		runner:   r,
		schedule: schedule,
		loc:      loc,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		runCtx:   context.Background(),
		cancel:   func() {},
	}
}

// Start launches the scheduling loop. Every run, scheduled or manual,
// executes under a context derived from the given one.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.runCtx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.started.Store(true)
	go s.loop(runCtx)
}

// Stop shuts the scheduler down: no further occurrences fire and the
// run context is canceled so an in-flight run aborts its current wait.
// Stop returns once the loop and any manual run have exited.
func (s *Scheduler) Stop() {
	if !s.started.Load() {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()

	<-s.doneCh
	s.wg.Wait()
}

// TriggerNow starts a run outside the schedule, in the background under
// the scheduler's lifecycle context. Days overrides the lookback window
// for this run only; zero keeps the configured default. It returns the
// run ID for the acknowledgement, or ErrRunActive.
func (s *Scheduler) TriggerNow(days int) (string, error) {
	if !s.running.CompareAndSwap(false, true) {
		return "", ErrRunActive
	}

	s.mu.Lock()
	runCtx := s.runCtx
	s.mu.Unlock()

	runID := logging.GenerateRunID()
	ctx := logging.ContextWithRunID(runCtx, runID)
	logging.Ctx(ctx).Info().Int("days", days).Msg("Manual run triggered")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.recordResult(s.runner.RunWindow(ctx, days))
	}()
	return runID, nil
}

// Status returns the current snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	next := s.nextRun
	last := s.lastRun
	s.mu.Unlock()

	return Status{
		Schedule: s.schedule.String(),
		Timezone: s.loc.String(),
		Running:  s.running.Load(),
		NextRun:  next,
		LastRun:  last,
	}
}

// loop arms a timer for each occurrence in turn until stopped.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	log := logging.Ctx(ctx)

	for {
		next := s.schedule.Next(time.Now().In(s.loc))
		s.setNextRun(next)
		metrics.SetNextRun(next)

		if next.IsZero() {
			log.Error().
				Str("schedule", s.schedule.String()).
				Msg("Schedule has no future occurrence, scheduler idle")
			select {
			case <-s.stopCh:
			case <-ctx.Done():
			}
			return
		}

		log.Info().
			Str("schedule", s.schedule.String()).
			Time("next_run", next).
			Msg("Next digest run scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.tryRun(ctx)
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// tryRun fires a scheduled run unless one is already active.
func (s *Scheduler) tryRun(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		logging.Ctx(ctx).Warn().Msg("Previous run still active, skipping this occurrence")
		metrics.RecordRunCoalesced()
		return
	}
	defer s.running.Store(false)

	s.recordResult(s.runner.Run(ctx))
}

func (s *Scheduler) recordResult(result runner.RunResult) {
	summary := &RunSummary{
		RunID:        result.RunID,
		Outcome:      string(result.Outcome),
		ItemsFound:   result.ItemsFound,
		MessagesSent: result.MessagesSent,
		FinishedAt:   time.Now(),
	}
	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}
