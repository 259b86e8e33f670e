package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"auditbay/internal/audit"
)

// Webhook posts failure alerts to an operator-configured endpoint (Slack
// bridge, mail relay, whatever is on the other side). Best-effort by
// contract: every error here is logged and swallowed.
type Webhook struct {
	URL  string
	HTTP *http.Client
}

func New(url string) *Webhook {
	return &Webhook{URL: url}
}

type failureAlert struct {
	AuditID uint64 `json:"audit_id"`
	URL     string `json:"url"`
	Email   string `json:"email"`
	Reason  string `json:"reason"`
	At      string `json:"at"`
}

func (w *Webhook) NotifyFailure(ctx context.Context, a *audit.Audit, reason string) {
	if w == nil || w.URL == "" {
		return
	}

	payload, err := json.Marshal(failureAlert{
		AuditID: a.ID,
		URL:     a.URL,
		Email:   a.Email,
		Reason:  reason,
		At:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("notify: marshal alert audit=%d: %v", a.ID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("notify: build alert audit=%d: %v", a.ID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient().Do(req)
	if err != nil {
		log.Printf("notify: send alert audit=%d: %v", a.ID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("notify: alert audit=%d got status %d", a.ID, resp.StatusCode)
	}
}

func (w *Webhook) httpClient() *http.Client {
	if w.HTTP != nil {
		return w.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}
