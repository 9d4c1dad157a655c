package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/metrics"
	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/progress"
	"github.com/osvaldoandrade/geoscope/internal/provider"
	"github.com/osvaldoandrade/geoscope/internal/providers"
	"github.com/osvaldoandrade/geoscope/internal/ratelimit"
	"github.com/osvaldoandrade/geoscope/internal/repository"
	"github.com/osvaldoandrade/geoscope/internal/runner"
	"github.com/osvaldoandrade/geoscope/internal/services"
	"github.com/osvaldoandrade/geoscope/internal/tracing"
	"github.com/osvaldoandrade/geoscope/pkg/config"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Analyses        services.AnalysisService
	Supervisor      *services.Supervisor
	Logger          *slog.Logger
	TZ              *time.Location
	RateLimiter     ratelimit.Limiter
	TracingShutdown func(context.Context) error

	dispatcher      runner.Dispatcher
	retentionCancel context.CancelFunc
}

// ApplicationOption overrides a collaborator before wiring completes.
type ApplicationOption func(*Application) error

// WithDispatcher replaces the HTTP provider client, used by tests to avoid
// real outbound calls.
func WithDispatcher(d runner.Dispatcher) ApplicationOption {
	return func(app *Application) error {
		app.dispatcher = d
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	redisClient := providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
	limiter := ratelimit.NewTokenBucketLimiter(redisClient)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.FixedZone("UTC", 0)
	}

	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "geoscope", "env", cfg.Env)
	slog.SetDefault(logger)

	metrics.RegisterRedisCollector(redisClient, logger)

	tracingShutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:          cfg,
		Logger:          logger,
		TZ:              loc,
		RateLimiter:     limiter,
		TracingShutdown: tracingShutdown,
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.dispatcher == nil {
		app.dispatcher = provider.NewClient(time.Duration(cfg.DispatchTimeoutSecs)*time.Second, logger)
	}

	taskRepo := repository.NewTaskRepository(redisClient, loc, cfg.ReportRetentionHours)
	reportRepo := repository.NewReportRepository(redisClient, loc, cfg.ReportRetentionHours)
	store := progress.NewStore()
	supervisor := services.NewSupervisor(logger)
	webhooks := services.NewWebhookService(logger, cfg.WebhookHmacSecret, 10*time.Second)
	analyses := services.NewAnalysisService(taskRepo, reportRepo, app.dispatcher, store, supervisor, webhooks, cfg, logger, time.Now)

	retention := services.NewRetentionService(taskRepo, logger, cfg.RetentionSweepIntervalSeconds)
	retentionCtx, retentionCancel := context.WithCancel(context.Background())
	go retention.Start(retentionCtx)

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestIDMiddleware(), middleware.LoggerMiddleware(logger))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.TracingMiddleware(cfg.Tracing.ServiceName))
	}

	app.Engine = engine
	app.Analyses = analyses
	app.Supervisor = supervisor
	app.retentionCancel = retentionCancel
	return app, nil
}

// Shutdown stops the retention sweeper, drains running batches, and flushes
// the trace exporter.
func (a *Application) Shutdown(ctx context.Context) error {
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	err := a.Supervisor.Shutdown(ctx)
	if a.TracingShutdown != nil {
		_ = a.TracingShutdown(ctx)
	}
	return err
}
