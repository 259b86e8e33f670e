package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"auditbay/internal/audit"

	"gorm.io/gorm"
)

const (
	DefaultProcessTimeout = 5 * time.Minute
	DefaultMaxRetries     = 3
)

// Result is what the audit engine hands back for a finished run.
type Result struct {
	Payload json.RawMessage
	Score   *int
}

// Processor runs the audit engine for one audit. It must tolerate being
// invoked from scratch on every retry and should honor ctx cancellation.
type Processor interface {
	Process(ctx context.Context, a *audit.Audit) (*Result, error)
}

// Notifier reports a terminally failed audit. Best-effort: implementations
// log their own errors and never return one.
type Notifier interface {
	NotifyFailure(ctx context.Context, a *audit.Audit, reason string)
}

// Outcome describes what Run did with a claimed item. Run never panics and
// never returns an error: triggers always get a plain answer, so a broken job
// cannot abort the scheduler that happened to pick it up.
type Outcome struct {
	AuditID uint64 `json:"audit_id"`
	Status  string `json:"status"` // completed, pending (requeued) or failed
	Err     string `json:"error,omitempty"`
}

type Executor struct {
	DB        *gorm.DB
	Repo      *Repo
	Processor Processor
	Notifier  Notifier

	// Timeout bounds one processor invocation; MaxRetries is how many times a
	// failed item goes back to pending before it fails for good. Zero values
	// fall back to the defaults above.
	Timeout    time.Duration
	MaxRetries int
}

// Run processes one claimed (running) item to its next state.
func (e *Executor) Run(ctx context.Context, item *QueueItem) Outcome {
	out := Outcome{AuditID: item.AuditID}

	var a audit.Audit
	if err := e.DB.WithContext(ctx).First(&a, item.AuditID).Error; err != nil {
		// Orphaned queue row; nothing to retry against.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out.Status = audit.StatusFailed
			out.Err = "audit row missing"
			if ferr := e.Repo.Fail(ctx, item, out.Err); ferr != nil {
				log.Printf("executor: fail audit=%d: %v", item.AuditID, ferr)
			}
			return out
		}
		a.ID = item.AuditID
		e.requeueOrFail(ctx, item, &a, &out, err)
		return out
	}

	res, err := e.invoke(ctx, &a)
	if err != nil {
		e.requeueOrFail(ctx, item, &a, &out, err)
		return out
	}

	if cerr := e.Repo.Complete(ctx, item, res.Payload, res.Score); cerr != nil {
		log.Printf("executor: complete audit=%d: %v", item.AuditID, cerr)
		out.Status = audit.StatusRunning
		out.Err = cerr.Error()
		return out
	}
	out.Status = audit.StatusCompleted
	return out
}

// invoke runs the processor under the configured deadline. The deadline is
// threaded into the processor's ctx so cancellation is cooperative, and the
// call is raced against the timer so an invocation that ignores its ctx still
// cannot wedge the executor; its late result is simply discarded.
func (e *Executor) invoke(ctx context.Context, a *audit.Audit) (*Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		res *Result
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- reply{nil, fmt.Errorf("processor panic: %v", p)}
			}
		}()
		res, err := e.Processor.Process(runCtx, a)
		if err == nil && res == nil {
			err = errors.New("processor returned no result")
		}
		ch <- reply{res, err}
	}()

	select {
	case rp := <-ch:
		return rp.res, rp.err
	case <-runCtx.Done():
		return nil, fmt.Errorf("processing deadline exceeded after %s", timeout)
	}
}

func (e *Executor) requeueOrFail(ctx context.Context, item *QueueItem, a *audit.Audit, out *Outcome, cause error) {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	out.Err = cause.Error()

	if item.RetryCount < maxRetries {
		out.Status = audit.StatusPending
		if err := e.Repo.Requeue(ctx, item, item.RetryCount+1, cause.Error()); err != nil {
			log.Printf("executor: requeue audit=%d: %v", item.AuditID, err)
		}
		return
	}

	out.Status = audit.StatusFailed
	if err := e.Repo.Fail(ctx, item, cause.Error()); err != nil {
		log.Printf("executor: fail audit=%d: %v", item.AuditID, err)
	}
	if e.Notifier != nil {
		e.Notifier.NotifyFailure(ctx, a, truncateError(cause.Error()))
	}
}
