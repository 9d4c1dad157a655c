package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/progress"
	"github.com/osvaldoandrade/geoscope/internal/repository"
	"github.com/osvaldoandrade/geoscope/pkg/config"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type scriptedDispatcher struct {
	mu       sync.Mutex
	response string
	err      error
	block    chan struct{}
	calls    int
}

func (d *scriptedDispatcher) Dispatch(ctx context.Context, prompt string, cfg domain.ProviderConfig) (string, error) {
	d.mu.Lock()
	d.calls++
	block := d.block
	d.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return d.response, d.err
}

func (d *scriptedDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type recordingWebhooks struct {
	mu    sync.Mutex
	tasks []string
}

func (r *recordingWebhooks) NotifyCompleted(ctx context.Context, task *domain.AnalysisTask, report *domain.BatchReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task.ID)
}

type serviceFixture struct {
	svc        AnalysisService
	dispatcher *scriptedDispatcher
	webhooks   *recordingWebhooks
	supervisor *Supervisor
	tasks      repository.TaskRepository
	reports    repository.ReportRepository
	cfg        *config.Config
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		DefaultConcurrency:    3,
		MaxConcurrency:        10,
		DefaultRequestDelayMs: 0,
		MaxPromptsPerBatch:    50,
	}
	tasks := repository.NewTaskRepository(rdb, time.UTC, 24)
	reports := repository.NewReportRepository(rdb, time.UTC, 24)
	dispatcher := &scriptedDispatcher{response: "Acme makes great products, see acme.com"}
	webhooks := &recordingWebhooks{}
	sup := NewSupervisor(nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})

	svc := NewAnalysisService(tasks, reports, dispatcher, progress.NewStore(), sup, webhooks, cfg, nil, nil)
	return &serviceFixture{
		svc: svc, dispatcher: dispatcher, webhooks: webhooks,
		supervisor: sup, tasks: tasks, reports: reports, cfg: cfg,
	}
}

func launchReq(prompts []string) domain.LaunchAnalysisRequest {
	return domain.LaunchAnalysisRequest{
		Name:     "smoke",
		Prompts:  prompts,
		Brands:   []string{"Acme"},
		Domains:  []string{"acme.com"},
		Endpoint: "https://api.openai.com/v1/chat/completions",
		APIKey:   "sk-test",
	}
}

func awaitTerminal(t *testing.T, f *serviceFixture, ownerID, taskID string) *domain.AnalysisTask {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		task, err := f.svc.Get(context.Background(), ownerID, taskID)
		if err == nil && task.Status.Terminal() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal status")
	return nil
}

func TestLaunchRunsBatchToCompletion(t *testing.T) {
	f := newServiceFixture(t)

	task, err := f.svc.Launch(context.Background(), "alice", launchReq([]string{"p1", "p2", "p3"}))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if task.ID == "" || task.Status != domain.StatusPending {
		t.Fatalf("unexpected task after launch: %+v", task)
	}

	final := awaitTerminal(t, f, "alice", task.ID)
	if final.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error=%q)", final.Status, final.Error)
	}
	if final.CompletedPrompts != 3 {
		t.Errorf("completedPrompts = %d, want 3", final.CompletedPrompts)
	}

	report, err := f.svc.Report(context.Background(), "alice", task.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.TotalPrompts != 3 || report.SuccessfulQueries != 3 {
		t.Errorf("report totals = %d/%d, want 3/3", report.SuccessfulQueries, report.TotalPrompts)
	}
	if report.BrandMentionRate != 100 || report.DomainMentionRate != 100 {
		t.Errorf("rates = %v/%v, want 100/100", report.BrandMentionRate, report.DomainMentionRate)
	}

	f.webhooks.mu.Lock()
	notified := len(f.webhooks.tasks)
	f.webhooks.mu.Unlock()
	if notified != 1 {
		t.Errorf("webhook notifications = %d, want 1", notified)
	}
}

func TestLaunchValidation(t *testing.T) {
	f := newServiceFixture(t)
	neg := -1

	cases := []struct {
		name   string
		mutate func(*domain.LaunchAnalysisRequest)
		want   string
	}{
		{"empty prompts", func(r *domain.LaunchAnalysisRequest) { r.Prompts = nil }, "prompts"},
		{"blank prompt", func(r *domain.LaunchAnalysisRequest) { r.Prompts = []string{"ok", "  "} }, "blank"},
		{"no names", func(r *domain.LaunchAnalysisRequest) { r.Brands = nil; r.Domains = nil }, "brand or domain"},
		{"bad endpoint", func(r *domain.LaunchAnalysisRequest) { r.Endpoint = "not a url" }, "endpoint"},
		{"bad webhook", func(r *domain.LaunchAnalysisRequest) { r.Webhook = "ftp://x" }, "webhook"},
		{"bad kind", func(r *domain.LaunchAnalysisRequest) { r.ProviderKind = "cohere" }, "providerKind"},
		{"negative delay", func(r *domain.LaunchAnalysisRequest) { r.RequestDelayMs = &neg }, "requestDelayMs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := launchReq([]string{"p1"})
			tc.mutate(&req)
			_, err := f.svc.Launch(context.Background(), "alice", req)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLaunchTruncatesToBatchLimit(t *testing.T) {
	f := newServiceFixture(t)
	f.cfg.MaxPromptsPerBatch = 2

	prompts := []string{"p1", "p2", "p3", "p4"}
	task, err := f.svc.Launch(context.Background(), "alice", launchReq(prompts))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if task.TotalPrompts != 2 {
		t.Fatalf("totalPrompts = %d, want 2", task.TotalPrompts)
	}

	final := awaitTerminal(t, f, "alice", task.ID)
	if final.CompletedPrompts != 2 {
		t.Errorf("completedPrompts = %d, want 2", final.CompletedPrompts)
	}
	if got := f.dispatcher.callCount(); got != 2 {
		t.Errorf("dispatches = %d, want 2", got)
	}
}

func TestProgressFallsBackToDurableRecord(t *testing.T) {
	f := newServiceFixture(t)

	task, err := f.svc.Launch(context.Background(), "alice", launchReq([]string{"p1", "p2"}))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	awaitTerminal(t, f, "alice", task.ID)

	// A fresh store simulates the post-restart case where the in-memory
	// entry is gone but the record survived in Redis.
	svc := NewAnalysisService(f.tasks, f.reports, f.dispatcher, progress.NewStore(),
		NewSupervisor(nil), f.webhooks, f.cfg, nil, nil)
	p, err := svc.Progress(context.Background(), "alice", task.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Status != domain.StatusCompleted || p.ProcessedCount != 2 || p.TotalCount != 2 {
		t.Errorf("fallback progress = %+v", p)
	}
}

func TestCancelStopsRunningBatch(t *testing.T) {
	f := newServiceFixture(t)
	f.dispatcher.block = make(chan struct{})

	task, err := f.svc.Launch(context.Background(), "alice", launchReq([]string{"p1", "p2", "p3"}))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	waitUntil(t, func() bool { return f.supervisor.Running(task.ID) })

	if err := f.svc.Cancel(context.Background(), "alice", task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	final := awaitTerminal(t, f, "alice", task.ID)
	if final.Status != domain.StatusCanceled {
		t.Fatalf("status = %s, want CANCELED", final.Status)
	}

	if err := f.svc.Cancel(context.Background(), "alice", task.ID); err == nil {
		t.Error("second cancel of a finished task should fail")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	f := newServiceFixture(t)

	task, err := f.svc.Launch(context.Background(), "alice", launchReq([]string{"p1"}))
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	awaitTerminal(t, f, "alice", task.ID)

	if _, err := f.svc.Get(context.Background(), "bob", task.ID); err == nil || err.Error() != "not-found" {
		t.Errorf("cross-owner Get: err = %v, want not-found", err)
	}
	if _, err := f.svc.Report(context.Background(), "bob", task.ID); err == nil {
		t.Error("cross-owner Report should fail")
	}
	if _, err := f.svc.Get(context.Background(), "admin", task.ID); err != nil {
		t.Errorf("admin Get: %v", err)
	}
}

func TestTestProviderRequiresKey(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.TestProvider(context.Background(), domain.TestProviderRequest{
		Endpoint: "https://api.openai.com/v1/chat/completions",
	})
	if err == nil {
		t.Fatal("expected missing-key error")
	}

	out, err := f.svc.TestProvider(context.Background(), domain.TestProviderRequest{
		Endpoint: "https://api.openai.com/v1/chat/completions",
		APIKey:   "sk-test",
	})
	if err != nil {
		t.Fatalf("TestProvider: %v", err)
	}
	if out == "" {
		t.Error("expected a response excerpt")
	}
}

func TestListByOwner(t *testing.T) {
	f := newServiceFixture(t)

	for _, owner := range []string{"alice", "alice", "bob"} {
		task, err := f.svc.Launch(context.Background(), owner, launchReq([]string{"p1"}))
		if err != nil {
			t.Fatalf("Launch: %v", err)
		}
		awaitTerminal(t, f, owner, task.ID)
	}

	mine, err := f.svc.List(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("alice sees %d tasks, want 2", len(mine))
	}
	for _, task := range mine {
		if task.OwnerID != "alice" {
			t.Errorf("leaked task owned by %s", task.OwnerID)
		}
	}
}
