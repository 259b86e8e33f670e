package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// TaskProcessAudit is the wake signal sent after an enqueue. The payload id
// is advisory; the consumer still goes through the claim, so a duplicate or
// stale signal can never cause double processing.
const TaskProcessAudit = "audit:process"

type processPayload struct {
	AuditID uint64 `json:"audit_id"`
}

// Client sends best-effort wake signals over redis. Callers treat a failed
// signal as a latency problem, not an error: the poller picks the work up on
// its next tick.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

func (c *Client) SignalWork(ctx context.Context, auditID uint64) error {
	payload, err := json.Marshal(processPayload{AuditID: auditID})
	if err != nil {
		return err
	}
	t := asynq.NewTask(TaskProcessAudit, payload)
	// No asynq-side retries: the scheduled poller is the retry mechanism.
	_, err = c.client.EnqueueContext(ctx, t, asynq.MaxRetry(0), asynq.Timeout(10*time.Minute))
	return err
}

func (c *Client) Close() error {
	return c.client.Close()
}
