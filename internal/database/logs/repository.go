// Package logs provides database operations for the activity log.
//
// # Usage
//
//	repo := logs.NewRepository(loggingPool)
//	err := repo.Insert(ctx, &entities.LogEntry{Action: "search_books"})
package logs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
)

const table = "logs"

// Filter narrows List. Zero fields match everything.
type Filter struct {
	UserID *int64
	Action string
	Since  time.Time
}

type Repository struct {
	pool database.Executor
}

func NewRepository(pool database.Executor) *Repository {
	return &Repository{pool: pool}
}

// Insert saves one entry. Empty details are stored as {}. A zero CreatedAt
// takes the server clock and is read back into entry.
func (r *Repository) Insert(ctx context.Context, entry *entities.LogEntry) error {
	if len(entry.Details) == 0 {
		entry.Details = []byte("{}")
	}
	omit := []string{"User"}
	if entry.CreatedAt.IsZero() {
		omit = append(omit, "CreatedAt")
	}
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		return db.Omit(omit...).Create(entry).Error
	})
	return database.Translate("insert", table, err)
}

// List retrieves entries matching f, most recent first, with the total
// number of matches.
func (r *Repository) List(ctx context.Context, f Filter, page database.Page) ([]entities.LogEntry, int64, error) {
	page, err := page.Normalize("list")
	if err != nil {
		return nil, 0, err
	}

	entries := []entities.LogEntry{}
	var total int64
	err = r.pool.Acquire(ctx, func(db *gorm.DB) error {
		query := db.Model(&entities.LogEntry{})
		if f.UserID != nil {
			query = query.Where("user_id = ?", *f.UserID)
		}
		if f.Action != "" {
			query = query.Where("action = ?", f.Action)
		}
		if !f.Since.IsZero() {
			query = query.Where("created_at >= ?", f.Since)
		}

		if err := query.Count(&total).Error; err != nil {
			return err
		}
		return query.Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&entries).Error
	})
	if err != nil {
		return nil, 0, database.Translate("list", table, err)
	}
	return entries, total, nil
}

// DeleteOlderThan removes entries created before cutoff and returns how
// many were deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.pool.Acquire(ctx, func(db *gorm.DB) error {
		res := db.Where("created_at < ?", cutoff).Delete(&entities.LogEntry{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, database.Translate("delete_older_than", table, err)
	}
	return deleted, nil
}
