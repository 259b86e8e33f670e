package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"auditbay/internal/audit"

	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	Svc *audit.Service
}

type createOrderReq struct {
	URL   string `json:"url"`
	Email string `json:"email"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}

	id, err := h.Svc.CreateOrder(r.Context(), audit.CreateOrderInput{
		URL:   req.URL,
		Email: req.Email,
	})
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

type statusDTO struct {
	ID     uint64 `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Paid   bool   `json:"paid"`
	Score  *int   `json:"score,omitempty"`
}

// Get is the polling projection: just enough for a checkout page spinner.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusDTO{
		ID:     a.ID,
		URL:    a.URL,
		Status: a.Status,
		Paid:   a.Paid,
		Score:  a.Score,
	})
}

// Report returns the full engine payload once the audit is done.
func (h *OrderHandler) Report(w http.ResponseWriter, r *http.Request) {
	a, ok := h.load(w, r)
	if !ok {
		return
	}
	if a.Status != audit.StatusCompleted || a.Result == nil {
		http.Error(w, "report not ready", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(a.Result)
}

func (h *OrderHandler) load(w http.ResponseWriter, r *http.Request) (*audit.Audit, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}
	a, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if err == audit.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return nil, false
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return nil, false
	}
	return a, true
}
