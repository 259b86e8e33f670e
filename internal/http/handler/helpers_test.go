package handler

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"auditbay/internal/audit"
	"auditbay/internal/queue"
	"auditbay/internal/testsupport"

	"gorm.io/gorm"
)

type stubProcessor struct {
	mu    sync.Mutex
	calls int
	res   *queue.Result
	err   error
}

func (p *stubProcessor) Process(ctx context.Context, a *audit.Audit) (*queue.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.res, p.err
}

func (p *stubProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubNotifier struct{}

func (stubNotifier) NotifyFailure(ctx context.Context, a *audit.Audit, reason string) {}

type testStack struct {
	gdb      *gorm.DB
	repo     *queue.Repo
	dispatch *queue.Dispatcher
	svc      *audit.Service
	proc     *stubProcessor
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gdb := testsupport.OpenDB(t)
	proc := &stubProcessor{res: &queue.Result{Payload: []byte(`{"ok":true}`)}}
	repo := &queue.Repo{DB: gdb}
	exec := &queue.Executor{
		DB:         gdb,
		Repo:       repo,
		Processor:  proc,
		Notifier:   stubNotifier{},
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}
	return &testStack{
		gdb:      gdb,
		repo:     repo,
		dispatch: &queue.Dispatcher{Repo: repo, Exec: exec},
		svc:      &audit.Service{DB: gdb},
		proc:     proc,
	}
}

func (s *testStack) createAudit(t *testing.T) uint64 {
	t.Helper()
	id, err := s.svc.CreateOrder(context.Background(), audit.CreateOrderInput{
		URL:   "https://example.com",
		Email: "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return id
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *testStack) audit(t *testing.T, id uint64) audit.Audit {
	t.Helper()
	var a audit.Audit
	if err := s.gdb.First(&a, id).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	return a
}
