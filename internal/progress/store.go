// Package progress holds the live per-task progress table polled while a
// batch runs. The store is an injected object with its own lifetime, not
// process-global state, so independent runners and tests never contaminate
// each other.
package progress

import (
	"sync"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/domain"
)

type Store interface {
	// Begin registers a task before dispatch starts. A second Begin for the
	// same id resets the entry.
	Begin(taskID string, total int, now time.Time)
	// Advance counts one more completed item. Increments are atomic, so the
	// count is monotonically non-decreasing regardless of completion order.
	Advance(taskID string)
	// Finish records the terminal status. Counts are left as-is.
	Finish(taskID string, status domain.TaskStatus)
	// Get returns a point-in-time copy; reads never block writers beyond the
	// copy itself.
	Get(taskID string, now time.Time) (domain.TaskProgress, bool)
	// Len reports the number of live entries (completed entries included;
	// eviction is the durable record's concern, not the store's).
	Len() int
}

type entry struct {
	status    domain.TaskStatus
	processed int
	total     int
	startTime time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore() Store {
	return &memoryStore{entries: make(map[string]*entry)}
}

func (s *memoryStore) Begin(taskID string, total int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[taskID] = &entry{
		status:    domain.StatusRunning,
		total:     total,
		startTime: now,
	}
}

func (s *memoryStore) Advance(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[taskID]
	if !ok {
		return
	}
	if e.processed < e.total {
		e.processed++
	}
}

func (s *memoryStore) Finish(taskID string, status domain.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[taskID]; ok {
		e.status = status
	}
}

func (s *memoryStore) Get(taskID string, now time.Time) (domain.TaskProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[taskID]
	if !ok {
		return domain.TaskProgress{}, false
	}
	return domain.TaskProgress{
		Status:         e.status,
		ProcessedCount: e.processed,
		TotalCount:     e.total,
		StartTime:      e.startTime,
		ElapsedSeconds: now.Sub(e.startTime).Seconds(),
	}, true
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
