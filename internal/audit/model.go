package audit

import (
	"encoding/json"
	"errors"
	"time"
)

// Status values shared by audits and their queue items.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrNotFound = errors.New("not found")

// Audit is one ordered site audit. Status mirrors the queue item state so
// polling clients never need to read the queue table.
type Audit struct {
	ID     uint64 `gorm:"primaryKey"`
	URL    string `gorm:"type:text;not null"`
	Email  string `gorm:"index;not null"`
	Status string `gorm:"index;not null;default:'pending'"`

	Paid   bool `gorm:"not null;default:false"`
	PaidAt *time.Time

	// Result is the raw payload returned by the audit engine.
	Result json.RawMessage `gorm:"type:jsonb"`
	Score  *int

	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
}
