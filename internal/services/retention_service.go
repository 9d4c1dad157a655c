package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/osvaldoandrade/geoscope/internal/repository"
)

// RetentionService prunes expired task and report records on a fixed
// interval. Expiry times live in a Redis sorted set scored by deadline, so a
// sweep is one range query plus the deletes.
type RetentionService interface {
	Start(ctx context.Context)
}

type retentionService struct {
	repo     repository.TaskRepository
	logger   *slog.Logger
	interval time.Duration
}

func NewRetentionService(repo repository.TaskRepository, logger *slog.Logger, intervalSeconds int) RetentionService {
	if intervalSeconds <= 0 {
		intervalSeconds = 600
	}
	return &retentionService{
		repo:     repo,
		logger:   logger,
		interval: time.Duration(intervalSeconds) * time.Second,
	}
}

func (s *retentionService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.repo.CleanupExpired(ctx, 1000, time.Now())
			if err != nil {
				s.logger.Warn("retention sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("retention sweep removed expired analyses", "count", removed)
			}
		}
	}
}
