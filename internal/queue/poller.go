package queue

import (
	"context"
	"log"
	"time"
)

const DefaultPollInterval = time.Minute

// Poller claims and runs pending work on a fixed interval. It is the safety
// net of the whole system: it guarantees progress even if every wake signal
// is dropped, and it is what re-claims items reverted to pending after a
// retryable failure.
type Poller struct {
	Dispatch *Dispatcher
	Interval time.Duration
}

func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out, err := p.Dispatch.PollOnce(ctx)
			if err != nil {
				log.Printf("poller: claim error: %v", err)
				continue
			}
			if out != nil {
				log.Printf("poller: processed audit=%d status=%s", out.AuditID, out.Status)
			}
		}
	}
}
