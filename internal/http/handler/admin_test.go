package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"auditbay/internal/audit"
	"auditbay/internal/auth"

	"github.com/go-chi/chi/v5"
)

func adminRouter(s *testStack, jwtSvc *auth.JWT) *chi.Mux {
	r := chi.NewRouter()

	ah := &AdminAuthHandler{DB: s.gdb, JWT: jwtSvc}
	r.Post("/admin/login", ah.Login)

	h := &AdminHandler{DB: s.gdb, Repo: s.repo, Dispatch: s.dispatch}
	r.Route("/admin/audits", func(r chi.Router) {
		r.Use(auth.RequireAdmin(jwtSvc))
		r.Get("/", h.List)
		r.Get("/{id}", h.Detail)
		r.Post("/{id}/run", h.Run)
		r.Post("/{id}/reset", h.Reset)
	})
	return r
}

func loginToken(t *testing.T, s *testStack, r *chi.Mux) string {
	t.Helper()
	if err := auth.EnsureAdmin(s.gdb, "ops@auditbay.test", "hunter2hunter2"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/login",
		strings.NewReader(`{"email":"ops@auditbay.test","password":"hunter2hunter2"}`)))
	if rec.Code != 200 {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Token
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	s := newTestStack(t)
	r := adminRouter(s, auth.NewJWT("testsecret"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/audits/", nil))
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminLoginBadCredentials(t *testing.T) {
	s := newTestStack(t)
	r := adminRouter(s, auth.NewJWT("testsecret"))
	if err := auth.EnsureAdmin(s.gdb, "ops@auditbay.test", "hunter2hunter2"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/login",
		strings.NewReader(`{"email":"ops@auditbay.test","password":"wrong"}`)))
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminManualRun(t *testing.T) {
	s := newTestStack(t)
	r := adminRouter(s, auth.NewJWT("testsecret"))
	token := loginToken(t, s, r)
	id := s.createAudit(t)

	req := httptest.NewRequest("POST", "/admin/audits/"+itoa(id)+"/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	it, err := s.repo.ItemForAudit(context.Background(), id)
	if err != nil || it == nil || it.Status != audit.StatusPending {
		t.Fatalf("item = %+v err = %v", it, err)
	}
	if a := s.audit(t, id); a.Status != audit.StatusRunning {
		t.Fatalf("audit status = %q, want running", a.Status)
	}
}

func TestAdminRunUnknownAudit(t *testing.T) {
	s := newTestStack(t)
	r := adminRouter(s, auth.NewJWT("testsecret"))
	token := loginToken(t, s, r)

	req := httptest.NewRequest("POST", "/admin/audits/31337/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminResetStuckAudit(t *testing.T) {
	s := newTestStack(t)
	r := adminRouter(s, auth.NewJWT("testsecret"))
	token := loginToken(t, s, r)
	id := s.createAudit(t)

	// Wedge the audit: claimed but the worker died.
	if _, err := s.repo.Enqueue(context.Background(), id); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if item, err := s.repo.ClaimOldestPending(context.Background()); err != nil || item == nil {
		t.Fatalf("claim: item=%v err=%v", item, err)
	}

	req := httptest.NewRequest("POST", "/admin/audits/"+itoa(id)+"/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	it, err := s.repo.ItemForAudit(context.Background(), id)
	if err != nil || it == nil || it.Status != audit.StatusPending || it.StartedAt != nil {
		t.Fatalf("item after reset = %+v err = %v", it, err)
	}
	if a := s.audit(t, id); a.Status != audit.StatusPending {
		t.Fatalf("audit status = %q, want pending", a.Status)
	}
}

func TestAdminListJoinsQueueState(t *testing.T) {
	s := newTestStack(t)
	r := adminRouter(s, auth.NewJWT("testsecret"))
	token := loginToken(t, s, r)

	id := s.createAudit(t)
	if _, err := s.repo.Enqueue(context.Background(), id); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin/audits/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var out []adminAuditDTO
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ID != id {
		t.Fatalf("list = %+v", out)
	}
	if out[0].Queue == nil || out[0].Queue.Status != audit.StatusPending {
		t.Fatalf("queue state not joined: %+v", out[0].Queue)
	}
}
