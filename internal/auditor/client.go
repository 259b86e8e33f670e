package auditor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"auditbay/internal/audit"
	"auditbay/internal/queue"
)

// Results larger than this are rejected rather than stored.
const maxResultBytes = 1 << 20

// Client calls the external audit engine. It implements queue.Processor; the
// engine owns all content generation, screenshots and scoring, this side only
// moves the payload.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

type runRequest struct {
	AuditID uint64 `json:"audit_id"`
	URL     string `json:"url"`
}

func (c *Client) Process(ctx context.Context, a *audit.Audit) (*queue.Result, error) {
	body, err := json.Marshal(runRequest{AuditID: a.ID, URL: a.URL})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/audits/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit engine: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return nil, fmt.Errorf("audit engine: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("audit engine: status %d: %s", resp.StatusCode, snippet(raw))
	}

	// Score is a convenience projection; the payload is stored as-is.
	var meta struct {
		Score *int `json:"score"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("audit engine: bad result json: %w", err)
	}

	return &queue.Result{Payload: raw, Score: meta.Score}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	// No client timeout: the executor's ctx deadline is the bound.
	return http.DefaultClient
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
