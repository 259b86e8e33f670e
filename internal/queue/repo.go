package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"auditbay/internal/audit"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Errors longer than this are truncated before they hit the store.
const maxErrorLen = 500

type Repo struct {
	DB *gorm.DB
}

// Enqueue upserts the queue row for an audit: a fresh pending attempt with
// retry_count and error state cleared, whatever the previous row held. The
// audit itself is optimistically flipped to running so polling clients see
// progress before any worker has claimed the item.
func (r *Repo) Enqueue(ctx context.Context, auditID uint64) (*QueueItem, error) {
	item := QueueItem{
		ID:        uuid.NewString(),
		AuditID:   auditID,
		Status:    audit.StatusPending,
		CreatedAt: time.Now(),
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev QueueItem
		if err := tx.Where("audit_id = ?", auditID).First(&prev).Error; err == nil {
			if prev.RetryCount > 0 || prev.Status == audit.StatusFailed {
				// Attempt history is discarded on re-enqueue; keep a trace of it.
				log.Printf("queue: re-enqueue audit=%d resets status=%s retry_count=%d", auditID, prev.Status, prev.RetryCount)
			}
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "audit_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":       audit.StatusPending,
				"retry_count":  0,
				"last_error":   nil,
				"created_at":   item.CreatedAt,
				"started_at":   nil,
				"completed_at": nil,
			}),
		}).Create(&item).Error; err != nil {
			return err
		}

		res := tx.Model(&audit.Audit{}).
			Where("id = ?", auditID).
			Update("status", audit.StatusRunning)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return audit.ErrNotFound
		}

		// On conflict the existing row (with its original id) was updated.
		return tx.Where("audit_id = ?", auditID).First(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ClaimOldestPending transitions the oldest pending item to running and
// returns it. Returns (nil, nil) when nothing is pending. The transition is a
// conditional update guarded by the observed status, so two callers racing
// for the same row can never both win: the loser's update matches zero rows
// and it comes away empty-handed.
func (r *Repo) ClaimOldestPending(ctx context.Context) (*QueueItem, error) {
	var claimed *QueueItem

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item QueueItem
		if err := tx.Where("status = ?", audit.StatusPending).
			Order("created_at asc").
			First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := time.Now()
		res := tx.Model(&QueueItem{}).
			Where("id = ? AND status = ?", item.ID, audit.StatusPending).
			Updates(map[string]any{"status": audit.StatusRunning, "started_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race; the next poll will find whatever is still pending.
			return nil
		}

		item.Status = audit.StatusRunning
		item.StartedAt = &now
		claimed = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks a running item and its audit as completed and stores the
// result payload. The status guard makes terminal states stick: a stale
// executor finishing after a re-enqueue or reset mutates nothing.
func (r *Repo) Complete(ctx context.Context, item *QueueItem, result json.RawMessage, score *int) error {
	now := time.Now()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&QueueItem{}).
			Where("id = ? AND status = ?", item.ID, audit.StatusRunning).
			Updates(map[string]any{"status": audit.StatusCompleted, "completed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&audit.Audit{}).
			Where("id = ?", item.AuditID).
			Updates(map[string]any{
				"status":       audit.StatusCompleted,
				"result":       result,
				"score":        score,
				"completed_at": now,
			}).Error
	})
}

// Requeue reverts a running item to pending after a retryable failure. The
// scheduled poller is what picks it up again; nothing self-schedules.
func (r *Repo) Requeue(ctx context.Context, item *QueueItem, retryCount int, errMsg string) error {
	msg := truncateError(errMsg)
	res := r.DB.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ? AND status = ?", item.ID, audit.StatusRunning).
		Updates(map[string]any{
			"status":      audit.StatusPending,
			"retry_count": retryCount,
			"last_error":  msg,
			"started_at":  nil,
		})
	return res.Error
}

// Fail marks a running item and its audit terminally failed.
func (r *Repo) Fail(ctx context.Context, item *QueueItem, errMsg string) error {
	msg := truncateError(errMsg)
	now := time.Now()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&QueueItem{}).
			Where("id = ? AND status = ?", item.ID, audit.StatusRunning).
			Updates(map[string]any{
				"status":       audit.StatusFailed,
				"last_error":   msg,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&audit.Audit{}).
			Where("id = ?", item.AuditID).
			Updates(map[string]any{"status": audit.StatusFailed, "completed_at": now}).Error
	})
}

// Reset is the manual recovery path: force the audit and any queue row for it
// back to pending with result and error state cleared, regardless of what
// state they are stuck in.
func (r *Repo) Reset(ctx context.Context, auditID uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&audit.Audit{}).
			Where("id = ?", auditID).
			Updates(map[string]any{
				"status":       audit.StatusPending,
				"result":       nil,
				"score":        nil,
				"completed_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return audit.ErrNotFound
		}
		return tx.Model(&QueueItem{}).
			Where("audit_id = ?", auditID).
			Updates(map[string]any{
				"status":       audit.StatusPending,
				"retry_count":  0,
				"last_error":   nil,
				"started_at":   nil,
				"completed_at": nil,
			}).Error
	})
}

// ItemForAudit returns the queue row for an audit, or nil if none exists.
func (r *Repo) ItemForAudit(ctx context.Context, auditID uint64) (*QueueItem, error) {
	var item QueueItem
	if err := r.DB.WithContext(ctx).Where("audit_id = ?", auditID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func truncateError(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
