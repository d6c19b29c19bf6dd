package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/catalog/internal/logging"
)

// DefaultRetentionDays is used when a prune task carries no retention.
const DefaultRetentionDays = 90

// ActivityPruner deletes activity older than a retention period.
type ActivityPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// PruneActivityTask removes activity log entries older than RetentionDays.
type PruneActivityTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for prune tasks.
func (t PruneActivityTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_activity",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Retention returns the task's retention as a duration.
func (t PruneActivityTask) Retention() time.Duration {
	days := t.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// PruneActivityProcessor creates a processor function for PruneActivityTask.
func PruneActivityProcessor(pruner ActivityPruner) backlite.QueueProcessor[PruneActivityTask] {
	return func(ctx context.Context, task PruneActivityTask) error {
		if pruner == nil {
			return fmt.Errorf("activity pruner not configured")
		}

		deleted, err := pruner.Prune(ctx, task.Retention())
		if err != nil {
			return fmt.Errorf("prune activity: %w", err)
		}

		logging.Tasks().WithFields(log.Fields{
			"deleted":        deleted,
			"retention_days": int(task.Retention().Hours() / 24),
		}).Info("pruned activity log")
		return nil
	}
}

// NewPruneActivityQueue creates a backlite queue for prune tasks.
func NewPruneActivityQueue(pruner ActivityPruner) backlite.Queue {
	return backlite.NewQueue(PruneActivityProcessor(pruner))
}
