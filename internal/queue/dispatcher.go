package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"auditbay/internal/audit"
)

// Signaler wakes a worker promptly after an enqueue. Best-effort: a failed
// signal costs latency, never correctness, because the scheduled poller will
// find the pending item anyway.
type Signaler interface {
	SignalWork(ctx context.Context, auditID uint64) error
}

// Dispatcher is the one enqueue/claim API every trigger path goes through:
// the payment webhook, the bus consumer, the scheduled poller and the manual
// admin trigger all converge here instead of carrying their own fallback
// logic.
type Dispatcher struct {
	Repo   *Repo
	Exec   *Executor
	Signal Signaler // nil when no bus is configured
}

// EnqueueAndSignal durably schedules processing for an audit, then pokes the
// bus so a worker picks it up without waiting for the next poll.
//
// Degraded paths:
//   - signal fails: the pending row exists, so we claim and run it right here
//     in the caller's context; exclusivity still comes from the claim.
//   - enqueue fails: no durable work was scheduled, so we run the processor
//     directly, one attempt, no retries.
func (d *Dispatcher) EnqueueAndSignal(ctx context.Context, auditID uint64) error {
	_, err := d.Repo.Enqueue(ctx, auditID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return err
		}
		log.Printf("dispatch: enqueue audit=%d failed, processing directly: %v", auditID, err)
		return d.runDirect(ctx, auditID)
	}

	if d.Signal == nil {
		return nil
	}
	if serr := d.Signal.SignalWork(ctx, auditID); serr != nil {
		log.Printf("dispatch: wake signal audit=%d failed, claiming inline: %v", auditID, serr)
		if _, perr := d.PollOnce(ctx); perr != nil {
			log.Printf("dispatch: inline claim audit=%d failed, poller will recover: %v", auditID, perr)
		}
	}
	return nil
}

// PollOnce claims at most one pending item and runs it. A nil outcome with a
// nil error means there was nothing to do.
func (d *Dispatcher) PollOnce(ctx context.Context) (*Outcome, error) {
	item, err := d.Repo.ClaimOldestPending(ctx)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	out := d.Exec.Run(ctx, item)
	return &out, nil
}

// runDirect is the degraded, queue-less path: a single synchronous attempt in
// the caller's context. On failure the audit is marked failed and the failure
// notification goes out immediately, since there is no queue row for the
// poller to retry.
func (d *Dispatcher) runDirect(ctx context.Context, auditID uint64) error {
	var a audit.Audit
	if err := d.Exec.DB.WithContext(ctx).First(&a, auditID).Error; err != nil {
		return fmt.Errorf("direct processing: load audit %d: %w", auditID, err)
	}

	now := time.Now()
	if err := d.Exec.DB.WithContext(ctx).Model(&audit.Audit{}).
		Where("id = ?", auditID).
		Update("status", audit.StatusRunning).Error; err != nil {
		return fmt.Errorf("direct processing: %w", err)
	}

	res, err := d.Exec.invoke(ctx, &a)
	if err != nil {
		if uerr := d.Exec.DB.WithContext(ctx).Model(&audit.Audit{}).
			Where("id = ?", auditID).
			Updates(map[string]any{"status": audit.StatusFailed, "completed_at": now}).Error; uerr != nil {
			log.Printf("dispatch: direct fail audit=%d: %v", auditID, uerr)
		}
		if d.Exec.Notifier != nil {
			d.Exec.Notifier.NotifyFailure(ctx, &a, truncateError(err.Error()))
		}
		return fmt.Errorf("direct processing: %w", err)
	}

	var payload json.RawMessage
	var score *int
	if res != nil {
		payload = res.Payload
		score = res.Score
	}
	return d.Exec.DB.WithContext(ctx).Model(&audit.Audit{}).
		Where("id = ?", auditID).
		Updates(map[string]any{
			"status":       audit.StatusCompleted,
			"result":       payload,
			"score":        score,
			"completed_at": time.Now(),
		}).Error
}
