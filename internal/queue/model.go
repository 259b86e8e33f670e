package queue

import "time"

// QueueItem is the durable record of one attempt to process an audit. There
// is at most one row per audit: Enqueue reuses it via upsert, resetting the
// attempt fields each time.
type QueueItem struct {
	ID      string `gorm:"primaryKey"`
	AuditID uint64 `gorm:"uniqueIndex;not null"`

	Status     string  `gorm:"index;not null"` // pending/running/completed/failed
	RetryCount int     `gorm:"not null"`
	LastError  *string `gorm:"type:text"`

	CreatedAt   time.Time `gorm:"index;not null"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}
