package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"auditbay/internal/audit"
	"auditbay/internal/queue"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB       *gorm.DB
	Repo     *queue.Repo
	Dispatch *queue.Dispatcher
}

type adminAuditDTO struct {
	ID          uint64     `json:"id"`
	URL         string     `json:"url"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	Paid        bool       `json:"paid"`
	Score       *int       `json:"score,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Queue *adminQueueDTO `json:"queue,omitempty"`
}

type adminQueueDTO struct {
	Status     string     `json:"status"`
	RetryCount int        `json:"retry_count"`
	LastError  *string    `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// List shows recent audits with their queue rows joined in, so an operator
// can spot rows stuck beyond the expected window.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	q := h.DB.WithContext(r.Context()).Model(&audit.Audit{})
	if st := r.URL.Query().Get("status"); st != "" {
		q = q.Where("status = ?", st)
	}

	var rows []audit.Audit
	if err := q.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	ids := make([]uint64, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.ID)
	}
	items := map[uint64]queue.QueueItem{}
	if len(ids) > 0 {
		var qrows []queue.QueueItem
		if err := h.DB.WithContext(r.Context()).Where("audit_id in ?", ids).Find(&qrows).Error; err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		for _, it := range qrows {
			items[it.AuditID] = it
		}
	}

	out := make([]adminAuditDTO, 0, len(rows))
	for _, a := range rows {
		dto := toAdminDTO(a)
		if it, ok := items[a.ID]; ok {
			dto.Queue = toQueueDTO(it)
		}
		out = append(out, dto)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *AdminHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var a audit.Audit
	if err := h.DB.WithContext(r.Context()).First(&a, id).Error; err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	dto := toAdminDTO(a)
	item, err := h.Repo.ItemForAudit(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if item != nil {
		dto.Queue = toQueueDTO(*item)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dto)
}

// Run is the manual trigger: same enqueue+signal path as the payment webhook,
// same degraded behavior when the enqueue fails.
func (h *AdminHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.Dispatch.EnqueueAndSignal(r.Context(), id); err != nil {
		if err == audit.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"ok": true})
}

// Reset forces a stuck audit and its queue row back to pending for manual
// recovery; the next poll picks it up as a fresh attempt.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.Repo.Reset(r.Context(), id); err != nil {
		if err == audit.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"ok": true})
}

func parseID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func toAdminDTO(a audit.Audit) adminAuditDTO {
	return adminAuditDTO{
		ID:          a.ID,
		URL:         a.URL,
		Email:       a.Email,
		Status:      a.Status,
		Paid:        a.Paid,
		Score:       a.Score,
		CreatedAt:   a.CreatedAt,
		CompletedAt: a.CompletedAt,
	}
}

func toQueueDTO(it queue.QueueItem) *adminQueueDTO {
	return &adminQueueDTO{
		Status:     it.Status,
		RetryCount: it.RetryCount,
		LastError:  it.LastError,
		CreatedAt:  it.CreatedAt,
		StartedAt:  it.StartedAt,
	}
}
