package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"auditbay/internal/audit"
	"auditbay/internal/queue"
)

// PaymentWebhookHandler is the payment-completion trigger. The provider
// retries on non-2xx, so once the event is authenticated and understood we
// answer 200 even when downstream scheduling degrades; the dispatcher's
// fallback paths own that outcome.
type PaymentWebhookHandler struct {
	Svc      *audit.Service
	Dispatch *queue.Dispatcher
	Secret   string
}

type paymentEvent struct {
	OrderID uint64 `json:"order_id"`
	Event   string `json:"event"`
}

func (h *PaymentWebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var ev paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if ev.OrderID == 0 {
		http.Error(w, "order_id required", http.StatusBadRequest)
		return
	}

	if ev.Event != "payment.completed" {
		// Not ours to act on; acknowledge so the provider stops resending.
		writeJSON(w, map[string]any{"ignored": true})
		return
	}

	if err := h.Svc.MarkPaid(r.Context(), ev.OrderID); err != nil {
		if err == audit.ErrNotFound {
			http.Error(w, "unknown order", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if err := h.Dispatch.EnqueueAndSignal(r.Context(), ev.OrderID); err != nil {
		// Degraded path already did its bookkeeping; just leave a trace.
		log.Printf("webhook: dispatch audit=%d: %v", ev.OrderID, err)
	}

	writeJSON(w, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
