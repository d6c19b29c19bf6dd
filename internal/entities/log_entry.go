package entities

import (
	"time"

	"gorm.io/datatypes"
)

// LogActionMaxLen bounds LogEntry.Action, matching the logs.action column.
const LogActionMaxLen = 100

// Well-known actions.
const (
	ActionSearchBooks = "search_books"
)

// LogEntry is one row of the activity log. UserID becomes nil when the
// referenced user is deleted; the entry itself is kept.
type LogEntry struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	UserID    *int64         `gorm:"index" json:"user_id,omitempty"`
	User      *User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Action    string         `gorm:"size:100;not null" json:"action"`
	Details   datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"details"`
	CreatedAt time.Time      `gorm:"index;not null;default:now()" json:"created_at"`
}

func (LogEntry) TableName() string {
	return "logs"
}
