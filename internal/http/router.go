package http

import (
	"net/http"

	"auditbay/internal/audit"
	"auditbay/internal/auth"
	"auditbay/internal/config"
	"auditbay/internal/http/handler"
	mw "auditbay/internal/http/middleware"
	"auditbay/internal/queue"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, repo *queue.Repo, dispatch *queue.Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	auditSvc := &audit.Service{DB: db}

	orders := &handler.OrderHandler{Svc: auditSvc}
	r.Post("/audits", orders.Create)
	r.Get("/audits/{id}", orders.Get)
	r.Get("/audits/{id}/report", orders.Report)

	wh := &handler.PaymentWebhookHandler{Svc: auditSvc, Dispatch: dispatch, Secret: cfg.WebhookSecret}
	r.Post("/webhooks/payment", wh.HandlePayment)

	poll := &handler.PollHandler{Dispatch: dispatch, Secret: cfg.PollSecret}
	r.Post("/internal/poll", poll.Poll)

	ah := &handler.AdminAuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/admin/login", ah.Login)

	adminH := &handler.AdminHandler{DB: db, Repo: repo, Dispatch: dispatch}
	r.Route("/admin/audits", func(r chi.Router) {
		r.Use(auth.RequireAdmin(jwtSvc))

		r.Get("/", adminH.List)
		r.Get("/{id}", adminH.Detail)
		r.Post("/{id}/run", adminH.Run)
		r.Post("/{id}/reset", adminH.Reset)
	})

	return r
}
