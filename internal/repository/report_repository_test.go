package repository

import (
	"context"
	"testing"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/scorer"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupReportRepo(t *testing.T) (context.Context, ReportRepository) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return context.Background(), NewReportRepository(rdb, time.UTC, 24)
}

func TestReportSaveAndGet(t *testing.T) {
	ctx, repo := setupReportRepo(t)

	rep := &domain.BatchReport{
		TaskID:            "t1",
		TaskName:          "review",
		TotalPrompts:      1,
		SuccessfulQueries: 1,
		Brands:            []string{"Acme"},
		Domains:           []string{"acme.com"},
		BrandStats:        map[string]domain.NameStats{"Acme": {MentionCount: 1, MentionRate: 100}},
		Timestamp:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Results: []domain.PromptResult{{
			Prompt:   "Tell me about Acme Corp",
			Response: "Acme Corp is a company at acme.com",
			Status:   domain.ResultSuccess,
			Analysis: scorer.Score("Acme Corp is a company at acme.com", []string{"Acme"}, []string{"acme.com"}),
		}},
	}

	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TaskName != "review" || got.SuccessfulQueries != 1 {
		t.Errorf("round-trip lost fields: %+v", got)
	}
	if len(got.Results) != 1 {
		t.Fatalf("results lost: %d", len(got.Results))
	}
	a := got.Results[0].Analysis
	if a.Brands.Get("Acme") != 1 || a.Domains.Get("acme.com") != 1 {
		t.Errorf("analysis flags lost on round-trip: %+v", a)
	}
	if names := a.Brands.Names(); len(names) != 1 || names[0] != "Acme" {
		t.Errorf("flag order lost: %v", names)
	}
}

func TestReportGetNotFound(t *testing.T) {
	ctx, repo := setupReportRepo(t)
	if _, err := repo.Get(ctx, "nope"); err == nil || err.Error() != "not-found" {
		t.Errorf("want not-found, got %v", err)
	}
}

func TestReportSaveWithoutID(t *testing.T) {
	ctx, repo := setupReportRepo(t)
	if err := repo.Save(ctx, &domain.BatchReport{}); err == nil {
		t.Error("expected error for missing task id")
	}
}
