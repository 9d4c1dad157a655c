package services

import (
	"context"
	"log/slog"
	"sync"
)

// Supervisor tracks every background batch goroutine by task id so in-flight
// work can be canceled individually and drained collectively at shutdown.
// Each batch runs detached from the launching HTTP request's context; only a
// Cancel call or process shutdown stops it.
type Supervisor struct {
	logger *slog.Logger

	mu      sync.Mutex
	base    context.Context
	baseCan context.CancelFunc
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		logger:  logger,
		base:    base,
		baseCan: cancel,
		running: map[string]context.CancelFunc{},
	}
}

// Launch starts fn on its own goroutine under a cancelable context derived
// from the supervisor's root. Returns false when a batch with the same task
// id is already running or the supervisor is shutting down.
func (s *Supervisor) Launch(taskID string, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.base.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if _, exists := s.running[taskID]; exists {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(s.base)
	s.running[taskID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("batch goroutine panicked", "task_id", taskID, "panic", r)
			}
			s.mu.Lock()
			delete(s.running, taskID)
			s.mu.Unlock()
			cancel()
			s.wg.Done()
		}()
		fn(ctx)
	}()
	return true
}

// Cancel stops the batch for taskID. Returns false when nothing is running
// under that id.
func (s *Supervisor) Cancel(taskID string) bool {
	s.mu.Lock()
	cancel, ok := s.running[taskID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether a batch is currently tracked for taskID.
func (s *Supervisor) Running(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[taskID]
	return ok
}

// Len returns the number of tracked batches.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Shutdown cancels every tracked batch and waits for their goroutines to
// finish or for ctx to expire, whichever comes first.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.baseCan()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
