package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	err       error
}

func (p *fakePruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.retention = retention
	return 3, p.err
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("0 3 * * *"))
	assert.NoError(t, ValidateCronSchedule("*/15 * * * *"))
	assert.Error(t, ValidateCronSchedule("not a schedule"))
	assert.Error(t, ValidateCronSchedule("0 0 3 * * *"), "seconds field is not accepted")
}

func TestNewRetentionSchedulerDefaults(t *testing.T) {
	s := NewRetentionScheduler(RetentionConfig{Enabled: true}, &fakePruner{})

	assert.Equal(t, DefaultSchedule, s.cfg.Schedule)
	assert.Equal(t, 90, s.cfg.RetentionDays)
}

func TestRetentionSchedulerDisabled(t *testing.T) {
	s := NewRetentionScheduler(RetentionConfig{Enabled: false}, &fakePruner{})

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.GetNextRunTime())
}

func TestRetentionSchedulerInvalidSchedule(t *testing.T) {
	s := NewRetentionScheduler(RetentionConfig{Enabled: true, Schedule: "whenever"}, &fakePruner{})

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "invalid cron schedule")
	assert.False(t, s.IsRunning())
}

func TestRetentionSchedulerStartStop(t *testing.T) {
	s := NewRetentionScheduler(RetentionConfig{Enabled: true, Schedule: "0 3 * * *"}, &fakePruner{})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next := s.GetNextRunTime()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Hour())
	assert.True(t, next.After(time.Now()))

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestRetentionSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewRetentionScheduler(RetentionConfig{Enabled: true}, &fakePruner{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestRetentionSchedulerRunNow(t *testing.T) {
	pruner := &fakePruner{}
	s := NewRetentionScheduler(RetentionConfig{RetentionDays: 14}, pruner)

	require.NoError(t, s.RunNow(context.Background()))
	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 14*24*time.Hour, pruner.retention)

	pruner.err = errors.New("db down")
	assert.ErrorContains(t, s.RunNow(context.Background()), "db down")
}

func TestRetentionSchedulerRunNowWithoutPruner(t *testing.T) {
	s := NewRetentionScheduler(RetentionConfig{}, nil)
	assert.Error(t, s.RunNow(context.Background()))
}
