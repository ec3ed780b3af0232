package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/coordinator"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

type fakeRunner struct {
	calls []time.Time
	clock *fakeClock
	err   error
}

func (r *fakeRunner) ReconcileAll(ctx context.Context, actor model.Actor) (*coordinator.ReconcileSummary, error) {
	r.calls = append(r.calls, r.clock.now)
	if r.err != nil {
		return nil, r.err
	}
	return &coordinator.ReconcileSummary{Checked: 1}, nil
}

// fakeClock jumps forward by whatever the scheduler waits for
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

var admin = model.Actor{UserID: "root", Role: db.RoleAdmin}

func newTestScheduler(t *testing.T, schedule string, clock *fakeClock, runner Runner) *Scheduler {
	t.Helper()
	s, err := NewScheduler(schedule, runner, admin, zap.NewNop())
	require.NoError(t, err)
	s.now = clock.Now
	s.after = clock.After
	return s
}

func TestNewScheduler_InvalidRule(t *testing.T) {
	_, err := NewScheduler("EVERY=TUESDAY", &fakeRunner{}, admin, zap.NewNop())
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestScheduler(t, "DTSTART=20250101T030000Z;FREQ=DAILY;COUNT=2", clock, &fakeRunner{clock: clock})

	next, ok := s.NextRun(clock.now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC), next)

	next, ok = s.NextRun(next)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC), next)

	_, ok = s.NextRun(next)
	assert.False(t, ok)
}

func TestRun_RunsEachOccurrence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{clock: clock}
	s := newTestScheduler(t, "DTSTART=20250101T030000Z;FREQ=DAILY;COUNT=3", clock, runner)

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, runner.calls, 3)
	for i, at := range runner.calls {
		assert.Equal(t, time.Date(2025, 1, 1+i, 3, 0, 0, 0, time.UTC), at)
	}
}

func TestRun_ContinuesAfterFailedPass(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{clock: clock, err: errors.New("database unavailable")}
	s := newTestScheduler(t, "DTSTART=20250101T000000Z;FREQ=HOURLY;COUNT=4", clock, runner)

	require.NoError(t, s.Run(context.Background()))
	assert.Len(t, runner.calls, 3, "the occurrence at the current instant is skipped")
}

func TestRun_StopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	runner := &fakeRunner{clock: clock}
	s := newTestScheduler(t, "FREQ=DAILY", clock, runner)
	s.after = func(time.Duration) <-chan time.Time { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
	assert.Empty(t, runner.calls)
}
