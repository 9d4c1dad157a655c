package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/domain"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Begin("t1", 5, start)
	p, ok := s.Get("t1", start.Add(2*time.Second))
	if !ok {
		t.Fatal("entry missing after Begin")
	}
	if p.Status != domain.StatusRunning || p.TotalCount != 5 || p.ProcessedCount != 0 {
		t.Errorf("unexpected initial snapshot: %+v", p)
	}
	if p.ElapsedSeconds != 2 {
		t.Errorf("elapsed = %v, want 2", p.ElapsedSeconds)
	}

	s.Advance("t1")
	s.Advance("t1")
	p, _ = s.Get("t1", start)
	if p.ProcessedCount != 2 {
		t.Errorf("processed = %d, want 2", p.ProcessedCount)
	}

	s.Finish("t1", domain.StatusCompleted)
	p, _ = s.Get("t1", start)
	if p.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", p.Status)
	}
}

func TestStoreUnknownTask(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("nope", time.Now()); ok {
		t.Error("unknown id should report not found")
	}
	// Advance/Finish on unknown ids are no-ops, not panics.
	s.Advance("nope")
	s.Finish("nope", domain.StatusFailed)
}

func TestStoreAdvanceNeverExceedsTotal(t *testing.T) {
	s := NewStore()
	s.Begin("t1", 2, time.Now())
	for i := 0; i < 5; i++ {
		s.Advance("t1")
	}
	p, _ := s.Get("t1", time.Now())
	if p.ProcessedCount != 2 {
		t.Errorf("processed = %d, want capped at 2", p.ProcessedCount)
	}
}

func TestStoreConcurrentAdvance(t *testing.T) {
	s := NewStore()
	const total = 200
	s.Begin("t1", total, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Advance("t1")
		}()
	}
	wg.Wait()

	p, _ := s.Get("t1", time.Now())
	if p.ProcessedCount != total {
		t.Errorf("processed = %d, want %d (no lost increments)", p.ProcessedCount, total)
	}
}

func TestStoreIsolation(t *testing.T) {
	a, b := NewStore(), NewStore()
	a.Begin("t1", 1, time.Now())
	if _, ok := b.Get("t1", time.Now()); ok {
		t.Error("stores must be independent")
	}
}
