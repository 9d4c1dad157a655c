// Package runner fans a list of prompts out to an LLM provider under a
// bounded-concurrency limit, collects ordered results, and publishes live
// progress. One failing item never aborts its siblings.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/metrics"
	"github.com/osvaldoandrade/geoscope/internal/progress"
	"github.com/osvaldoandrade/geoscope/internal/scorer"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Dispatcher is the provider adapter seen by the runner. Implementations
// return either the extracted text or a structured error; they never panic
// by contract, but the runner guards against it anyway.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string, cfg domain.ProviderConfig) (string, error)
}

type Spec struct {
	TaskID       string
	Prompts      []string
	Provider     domain.ProviderConfig
	Brands       []string
	Domains      []string
	Concurrency  int
	RequestDelay time.Duration
}

type Runner struct {
	dispatcher Dispatcher
	store      progress.Store
	logger     *slog.Logger
	now        func() time.Time
}

func New(dispatcher Dispatcher, store progress.Store, logger *slog.Logger, now func() time.Time) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{dispatcher: dispatcher, store: store, logger: logger, now: now}
}

// Run dispatches every prompt and returns one result per prompt, in input
// order, regardless of completion order. The progress entry for the task is
// registered before dispatch begins and advanced as items finish.
//
// The concurrency limiter gates the whole acquire -> dispatch -> pacing
// sequence: a slot is released only after the pacing delay has elapsed past
// the dispatch's return, so effective per-slot throughput stays throttled
// even when errors return fast.
func (r *Runner) Run(ctx context.Context, spec Spec) []domain.PromptResult {
	concurrency := spec.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	delay := spec.RequestDelay
	if delay < 0 {
		delay = 0
	}

	ctx, span := otel.Tracer("geoscope/runner").Start(ctx, "geoscope.batch.run",
		trace.WithAttributes(
			attribute.String("geoscope.task_id", spec.TaskID),
			attribute.Int("geoscope.batch.size", len(spec.Prompts)),
			attribute.Int("geoscope.batch.concurrency", concurrency),
		),
	)
	defer span.End()

	r.store.Begin(spec.TaskID, len(spec.Prompts), r.now())

	results := make([]domain.PromptResult, len(spec.Prompts))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, prompt := range spec.Prompts {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			defer r.store.Advance(spec.TaskID)

			if err := sem.Acquire(ctx, 1); err != nil {
				// Canceled while queued; the item never reached the provider.
				results[i] = errorResult(prompt, fmt.Sprintf("canceled before dispatch: %v", err))
				return
			}
			defer sem.Release(1)

			text, err := r.safeDispatch(ctx, prompt, spec.Provider)
			if err != nil {
				results[i] = errorResult(prompt, err.Error())
			} else {
				results[i] = domain.PromptResult{Prompt: prompt, Response: text, Status: domain.ResultSuccess}
			}

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
				}
			}
		}(i, prompt)
	}
	wg.Wait()

	canceled := ctx.Err() != nil
	r.score(spec, results)

	if canceled {
		r.store.Finish(spec.TaskID, domain.StatusCanceled)
	} else {
		r.store.Finish(spec.TaskID, domain.StatusCompleted)
	}
	return results
}

// safeDispatch shields the batch from a misbehaving dispatcher: a panic in
// one item becomes that item's error result.
func (r *Runner) safeDispatch(ctx context.Context, prompt string, cfg domain.ProviderConfig) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("dispatch panic recovered", "prompt", prompt, "panic", rec)
			err = fmt.Errorf("query panic: %v", rec)
		}
	}()
	return r.dispatcher.Dispatch(ctx, prompt, cfg)
}

func (r *Runner) score(spec Spec, results []domain.PromptResult) {
	for i := range results {
		if results[i].Status != domain.ResultSuccess {
			results[i].Analysis = domain.ZeroAnalysis(spec.Brands, spec.Domains)
			continue
		}
		results[i].Analysis = scorer.Score(results[i].Response, spec.Brands, spec.Domains)
		if results[i].Analysis.HasBrandMention {
			metrics.MentionHitsTotal.WithLabelValues("brand").Inc()
		}
		if results[i].Analysis.HasDomainMention {
			metrics.MentionHitsTotal.WithLabelValues("domain").Inc()
		}
	}
}

func errorResult(prompt, message string) domain.PromptResult {
	return domain.PromptResult{Prompt: prompt, Response: message, Status: domain.ResultError}
}
