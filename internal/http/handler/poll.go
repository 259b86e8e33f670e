package handler

import (
	"crypto/subtle"
	"net/http"

	"auditbay/internal/queue"
)

// PollHandler is the claim endpoint an external cron hits every minute or
// two. Finding no pending work is the normal case and still a 200.
type PollHandler struct {
	Dispatch *queue.Dispatcher
	Secret   string
}

func (h *PollHandler) Poll(w http.ResponseWriter, r *http.Request) {
	got := r.URL.Query().Get("secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	out, err := h.Dispatch.PollOnce(r.Context())
	if err != nil {
		// Store-level claim failure. No row changed state; the next poll
		// simply tries again.
		http.Error(w, "claim failed", http.StatusInternalServerError)
		return
	}
	if out == nil {
		writeJSON(w, map[string]any{"processed": false})
		return
	}
	writeJSON(w, map[string]any{
		"processed": true,
		"audit_id":  out.AuditID,
		"status":    out.Status,
	})
}
