// Package reconciler periodically recomputes every volunteer's cached point
// balance from the approved activity log.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/coordinator"
	"github.com/jakechorley/charity-hub/pkg/core/model"
)

// Runner performs one full reconciliation pass
type Runner interface {
	ReconcileAll(ctx context.Context, actor model.Actor) (*coordinator.ReconcileSummary, error)
}

// Scheduler runs reconciliation passes at the occurrences of an RRULE.
// A rule without DTSTART is anchored at the time it is parsed.
type Scheduler struct {
	rule   *rrule.RRule
	runner Runner
	actor  model.Actor
	logger *zap.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewScheduler parses schedule, e.g. "FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0".
// Passes run as actor, which must be an admin.
func NewScheduler(schedule string, runner Runner, actor model.Actor, logger *zap.Logger) (*Scheduler, error) {
	rule, err := rrule.StrToRRule(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reconcile schedule: %w", err)
	}
	return &Scheduler{
		rule:   rule,
		runner: runner,
		actor:  actor,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// NextRun returns the first occurrence strictly after from. ok is false when
// the schedule has no further occurrences.
func (s *Scheduler) NextRun(from time.Time) (next time.Time, ok bool) {
	next = s.rule.After(from, false)
	return next, !next.IsZero()
}

// Run blocks, running a pass at each occurrence until ctx is cancelled or
// the schedule is exhausted. A failed pass is logged and the schedule
// continues.
func (s *Scheduler) Run(ctx context.Context) error {
	passes := 0
	for {
		next, ok := s.NextRun(s.now())
		if !ok {
			s.logger.Info("Reconcile schedule exhausted", zap.Int("passes", passes))
			return nil
		}
		s.logger.Info("Next reconciliation scheduled", zap.Time("at", next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}

		passes++
		summary, err := s.runner.ReconcileAll(ctx, s.actor)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			s.logger.Error("Reconciliation pass failed", zap.Int("pass", passes), zap.Error(err))
			continue
		}
		s.logger.Info("Reconciliation pass finished",
			zap.Int("pass", passes),
			zap.Int("checked", summary.Checked),
			zap.Int("drifted", len(summary.Drifted)),
			zap.Int("failed", len(summary.Failures)))
	}
}
