package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/aggregate"
	"github.com/osvaldoandrade/geoscope/internal/metrics"
	"github.com/osvaldoandrade/geoscope/internal/progress"
	"github.com/osvaldoandrade/geoscope/internal/provider"
	"github.com/osvaldoandrade/geoscope/internal/repository"
	"github.com/osvaldoandrade/geoscope/internal/runner"
	"github.com/osvaldoandrade/geoscope/pkg/config"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AnalysisService owns the lifecycle of batch analyses: validation and
// launch, live progress, report retrieval, cancellation, and cleanup.
type AnalysisService interface {
	Launch(ctx context.Context, ownerID string, req domain.LaunchAnalysisRequest) (*domain.AnalysisTask, error)
	Get(ctx context.Context, ownerID, taskID string) (*domain.AnalysisTask, error)
	List(ctx context.Context, ownerID string, limit int) ([]domain.AnalysisTask, error)
	Progress(ctx context.Context, ownerID, taskID string) (*domain.TaskProgress, error)
	Report(ctx context.Context, ownerID, taskID string) (*domain.BatchReport, error)
	Cancel(ctx context.Context, ownerID, taskID string) error
	TestProvider(ctx context.Context, req domain.TestProviderRequest) (string, error)
	Cleanup(ctx context.Context, limit int) (int, error)
}

type analysisService struct {
	tasks      repository.TaskRepository
	reports    repository.ReportRepository
	dispatcher runner.Dispatcher
	store      progress.Store
	supervisor *Supervisor
	webhooks   WebhookService
	cfg        *config.Config
	logger     *slog.Logger
	now        func() time.Time
}

func NewAnalysisService(
	tasks repository.TaskRepository,
	reports repository.ReportRepository,
	dispatcher runner.Dispatcher,
	store progress.Store,
	supervisor *Supervisor,
	webhooks WebhookService,
	cfg *config.Config,
	logger *slog.Logger,
	now func() time.Time,
) AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &analysisService{
		tasks:      tasks,
		reports:    reports,
		dispatcher: dispatcher,
		store:      store,
		supervisor: supervisor,
		webhooks:   webhooks,
		cfg:        cfg,
		logger:     logger,
		now:        now,
	}
}

func (s *analysisService) Launch(ctx context.Context, ownerID string, req domain.LaunchAnalysisRequest) (*domain.AnalysisTask, error) {
	if err := s.validateLaunch(&req); err != nil {
		return nil, err
	}

	prompts := req.Prompts
	if len(prompts) > s.cfg.MaxPromptsPerBatch {
		s.logger.Warn("prompt list truncated to batch limit",
			"owner", ownerID, "requested", len(prompts), "limit", s.cfg.MaxPromptsPerBatch)
		prompts = prompts[:s.cfg.MaxPromptsPerBatch]
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.DefaultConcurrency
	}
	if concurrency > s.cfg.MaxConcurrency {
		concurrency = s.cfg.MaxConcurrency
	}

	delayMs := s.cfg.DefaultRequestDelayMs
	if req.RequestDelayMs != nil && *req.RequestDelayMs >= 0 {
		delayMs = *req.RequestDelayMs
	}

	providerCfg := domain.ProviderConfig{
		Endpoint:      strings.TrimSpace(req.Endpoint),
		APIKey:        strings.TrimSpace(req.APIKey),
		Model:         strings.TrimSpace(req.Model),
		Kind:          domain.ProviderKind(strings.ToLower(strings.TrimSpace(req.ProviderKind))),
		StrictExtract: req.StrictExtract,
	}
	kind := providerCfg.ResolvedKind()

	task := domain.AnalysisTask{
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(req.Name),
		Status:         domain.StatusPending,
		TotalPrompts:   len(prompts),
		Endpoint:       providerCfg.Endpoint,
		Model:          providerCfg.Model,
		Brands:         req.Brands,
		Domains:        req.Domains,
		Concurrency:    concurrency,
		RequestDelayMs: delayMs,
		Webhook:        strings.TrimSpace(req.Webhook),
	}
	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	spec := runner.Spec{
		TaskID:       created.ID,
		Prompts:      prompts,
		Provider:     providerCfg,
		Brands:       req.Brands,
		Domains:      req.Domains,
		Concurrency:  concurrency,
		RequestDelay: time.Duration(delayMs) * time.Millisecond,
	}

	if ok := s.supervisor.Launch(created.ID, func(batchCtx context.Context) {
		s.runBatch(batchCtx, created, spec, string(kind))
	}); !ok {
		return nil, fmt.Errorf("service is shutting down")
	}

	metrics.BatchLaunchedTotal.WithLabelValues(string(kind)).Inc()
	return created, nil
}

// runBatch executes a launched batch to completion on a supervisor
// goroutine, then persists the report and notifies the webhook. It never
// returns an error; failures are recorded on the task itself.
func (s *analysisService) runBatch(ctx context.Context, task *domain.AnalysisTask, spec runner.Spec, providerLabel string) {
	ctx, span := otel.Tracer("geoscope/batch").Start(ctx, "geoscope.batch.execute",
		trace.WithAttributes(
			attribute.String("geoscope.task_id", task.ID),
			attribute.String("geoscope.provider", providerLabel),
			attribute.Int("geoscope.prompts", len(spec.Prompts)),
		),
	)
	defer span.End()

	started := s.now()
	if err := s.tasks.UpdateStatus(ctx, task.ID, domain.StatusRunning, 0, ""); err != nil {
		s.logger.Warn("running status update failed", "task_id", task.ID, "err", err)
	}

	batch := runner.New(s.dispatcher, s.store, s.logger, s.now)
	results := batch.Run(ctx, spec)

	status := domain.StatusCompleted
	if ctx.Err() != nil {
		status = domain.StatusCanceled
	}

	report := aggregate.Summarize(aggregate.Input{
		TaskID:   task.ID,
		TaskName: task.Name,
		Results:  results,
		Brands:   spec.Brands,
		Domains:  spec.Domains,
		Settings: domain.ReportSettings{
			Concurrency:    spec.Concurrency,
			RequestDelayMs: task.RequestDelayMs,
			Endpoint:       spec.Provider.Endpoint,
			Model:          spec.Provider.Model,
		},
		Now: s.now(),
	})

	// The batch context is gone once canceled; persistence and callbacks get
	// their own deadline so a cancel still leaves a usable partial report.
	finishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errMsg := ""
	if err := s.reports.Save(finishCtx, report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("report save failed", "task_id", task.ID, "err", err)
		status = domain.StatusFailed
		errMsg = fmt.Sprintf("report save failed: %v", err)
	}
	if err := s.tasks.UpdateStatus(finishCtx, task.ID, status, len(results), errMsg); err != nil {
		s.logger.Error("task finish update failed", "task_id", task.ID, "err", err)
	}

	task.Status = status
	task.CompletedPrompts = len(results)
	s.webhooks.NotifyCompleted(finishCtx, task, report)

	metrics.BatchCompletedTotal.WithLabelValues(providerLabel, string(status)).Inc()
	metrics.BatchDurationSeconds.WithLabelValues(providerLabel, string(status)).Observe(s.now().Sub(started).Seconds())
	s.logger.Info("batch finished",
		"task_id", task.ID, "status", status,
		"prompts", len(results), "successful", report.SuccessfulQueries,
		"duration", s.now().Sub(started).Round(time.Millisecond))
}

func (s *analysisService) validateLaunch(req *domain.LaunchAnalysisRequest) error {
	if len(req.Prompts) == 0 {
		return fmt.Errorf("prompts must not be empty")
	}
	for i, p := range req.Prompts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("prompt %d is blank", i)
		}
	}
	if len(req.Brands) == 0 && len(req.Domains) == 0 {
		return fmt.Errorf("at least one brand or domain is required")
	}
	if err := validateHTTPURL(req.Endpoint); err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if strings.TrimSpace(req.Webhook) != "" {
		if err := validateHTTPURL(req.Webhook); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
	}
	if k := strings.TrimSpace(req.ProviderKind); k != "" {
		if !domain.ProviderKind(strings.ToLower(k)).Valid() {
			return fmt.Errorf("unknown providerKind %q", k)
		}
	}
	if req.RequestDelayMs != nil && *req.RequestDelayMs < 0 {
		return fmt.Errorf("requestDelayMs must not be negative")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

func (s *analysisService) Get(ctx context.Context, ownerID, taskID string) (*domain.AnalysisTask, error) {
	return s.ownedTask(ctx, ownerID, taskID)
}

func (s *analysisService) List(ctx context.Context, ownerID string, limit int) ([]domain.AnalysisTask, error) {
	return s.tasks.ListByOwner(ctx, ownerID, limit)
}

// Progress serves live in-memory progress while the batch runs and falls
// back to the persisted record afterward, so polling keeps working across a
// process restart.
func (s *analysisService) Progress(ctx context.Context, ownerID, taskID string) (*domain.TaskProgress, error) {
	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if p, ok := s.store.Get(taskID, s.now()); ok {
		return &p, nil
	}
	p := domain.TaskProgress{
		Status:         task.Status,
		ProcessedCount: task.CompletedPrompts,
		TotalCount:     task.TotalPrompts,
		StartTime:      task.CreatedAt,
	}
	if task.CompletedAt != "" {
		if done, err := time.Parse(time.RFC3339, task.CompletedAt); err == nil {
			p.ElapsedSeconds = done.Sub(task.CreatedAt).Seconds()
		}
	}
	return &p, nil
}

func (s *analysisService) Report(ctx context.Context, ownerID, taskID string) (*domain.BatchReport, error) {
	if _, err := s.ownedTask(ctx, ownerID, taskID); err != nil {
		return nil, err
	}
	return s.reports.Get(ctx, taskID)
}

// Cancel stops the running batch. Queued prompts are abandoned and in-flight
// dispatches are interrupted; the partial report is still written by the
// batch goroutine on its way out.
func (s *analysisService) Cancel(ctx context.Context, ownerID, taskID string) error {
	task, err := s.ownedTask(ctx, ownerID, taskID)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return fmt.Errorf("already-finished")
	}
	if !s.supervisor.Cancel(taskID) {
		// Terminal status not yet persisted, or the process restarted and the
		// batch is simply gone. Mark it canceled either way.
		if err := s.tasks.UpdateStatus(ctx, taskID, domain.StatusCanceled, task.CompletedPrompts, "canceled by owner"); err != nil {
			return err
		}
	}
	return nil
}

// TestProvider dispatches a single short prompt to verify the endpoint,
// credentials, and payload shape. The API key is mandatory here even for
// providers that accept keyless calls.
func (s *analysisService) TestProvider(ctx context.Context, req domain.TestProviderRequest) (string, error) {
	cfg := domain.ProviderConfig{
		Endpoint: strings.TrimSpace(req.Endpoint),
		APIKey:   strings.TrimSpace(req.APIKey),
		Model:    strings.TrimSpace(req.Model),
		Kind:     domain.ProviderKind(strings.ToLower(strings.TrimSpace(req.ProviderKind))),
	}
	if err := provider.ValidateConfig(cfg, true); err != nil {
		return "", err
	}
	return s.dispatcher.Dispatch(ctx, "Hello! Please respond with a short greeting.", cfg)
}

func (s *analysisService) Cleanup(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.tasks.CleanupExpired(ctx, limit, s.now())
}

func (s *analysisService) ownedTask(ctx context.Context, ownerID, taskID string) (*domain.AnalysisTask, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	// Owners only see their own analyses; a mismatch reads as absent rather
	// than forbidden.
	if task.OwnerID != "" && task.OwnerID != ownerID && ownerID != "admin" {
		return nil, fmt.Errorf("not-found")
	}
	return task, nil
}
