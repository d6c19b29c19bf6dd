// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/catalog/internal/logging"
	"github.com/mrlokans/catalog/internal/tasks"
)

// DefaultSchedule runs retention daily at 03:00.
const DefaultSchedule = "0 3 * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks that schedule is a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// RetentionConfig controls activity log retention.
type RetentionConfig struct {
	Enabled       bool
	Schedule      string
	RetentionDays int
}

// Enqueuer adds tasks to the durable queue.
type Enqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// RetentionScheduler prunes the activity log on a schedule, either inline
// or by enqueueing a prune task.
type RetentionScheduler struct {
	cfg    RetentionConfig
	pruner tasks.ActivityPruner
	queue  Enqueuer
	log    *log.Entry

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isPruning  atomic.Bool
	cancelFunc context.CancelFunc
}

// NewRetentionScheduler creates a scheduler pruning through pruner.
func NewRetentionScheduler(cfg RetentionConfig, pruner tasks.ActivityPruner) *RetentionScheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = tasks.DefaultRetentionDays
	}
	return &RetentionScheduler{
		cfg:    cfg,
		pruner: pruner,
		log:    logging.Scheduler().WithField("job", "activity_retention"),
	}
}

// UseQueue makes runs enqueue a PruneActivityTask instead of pruning inline.
func (s *RetentionScheduler) UseQueue(queue Enqueuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = queue
}

// Start begins the scheduler if retention is enabled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("retention scheduler disabled")
		return nil
	}
	if err := ValidateCronSchedule(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}

	s.cron = cron.New(cron.WithParser(parser))
	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.log.WithFields(log.Fields{
		"schedule":       s.cfg.Schedule,
		"retention_days": s.cfg.RetentionDays,
		"next_run":       s.cron.Entry(entryID).Next,
	}).Info("retention scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	s.log.Info("retention scheduler stopped")
}

// RunNow prunes immediately, regardless of the schedule.
func (s *RetentionScheduler) RunNow(ctx context.Context) error {
	return s.run(ctx)
}

// IsRunning returns whether the scheduler is active.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next prune will occur.
func (s *RetentionScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *RetentionScheduler) run(ctx context.Context) error {
	if !s.isPruning.CompareAndSwap(false, true) {
		s.log.Info("retention skipped, already running")
		return nil
	}
	defer s.isPruning.Store(false)

	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()

	task := tasks.PruneActivityTask{RetentionDays: s.cfg.RetentionDays}
	if queue != nil {
		ids, err := queue.Add(task).Save()
		if err != nil {
			s.log.WithError(err).Error("failed to enqueue prune task")
			return fmt.Errorf("enqueue prune task: %w", err)
		}
		s.log.WithField("task_ids", ids).Info("prune task enqueued")
		return nil
	}

	if s.pruner == nil {
		return fmt.Errorf("activity pruner not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := s.pruner.Prune(ctx, task.Retention()); err != nil {
		s.log.WithError(err).Error("activity retention failed")
		return err
	}
	return nil
}
