package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/catalog/internal/activity"
)

// RecordActivityTask carries one activity entry through the durable queue.
type RecordActivityTask struct {
	ID       uuid.UUID       `json:"id"`
	UserID   *int64          `json:"user_id,omitempty"`
	Action   string          `json:"action"`
	Details  json.RawMessage `json:"details"`
	QueuedAt time.Time       `json:"queued_at"`
}

// Config returns the queue configuration for activity records. Failed
// writes are not retried; the failed task is retained for inspection.
func (t RecordActivityTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "record_activity",
		MaxAttempts: 1,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Entry converts the task back into an activity entry.
func (t RecordActivityTask) Entry() activity.Entry {
	return activity.Entry{
		ID:       t.ID,
		UserID:   t.UserID,
		Action:   t.Action,
		Details:  t.Details,
		QueuedAt: t.QueuedAt,
	}
}

// RecordActivityProcessor creates a processor function for RecordActivityTask.
func RecordActivityProcessor(store activity.Store) backlite.QueueProcessor[RecordActivityTask] {
	return func(ctx context.Context, task RecordActivityTask) error {
		if store == nil {
			return fmt.Errorf("activity store not configured")
		}
		if err := store.Insert(ctx, task.Entry().LogEntry()); err != nil {
			return fmt.Errorf("record activity %s: %w", task.ID, err)
		}
		return nil
	}
}

// NewRecordActivityQueue creates a backlite queue for activity records.
func NewRecordActivityQueue(store activity.Store) backlite.Queue {
	return backlite.NewQueue(RecordActivityProcessor(store))
}

// ActivitySink persists entries to the task queue so they survive a
// restart before reaching the database.
type ActivitySink struct {
	client *Client
}

// NewActivitySink creates a sink enqueueing on client.
func NewActivitySink(client *Client) *ActivitySink {
	return &ActivitySink{client: client}
}

func (s *ActivitySink) Write(ctx context.Context, entry activity.Entry) error {
	_, err := s.client.Add(RecordActivityTask{
		ID:       entry.ID,
		UserID:   entry.UserID,
		Action:   entry.Action,
		Details:  entry.Details,
		QueuedAt: entry.QueuedAt,
	}).Ctx(ctx).Save()
	return err
}
