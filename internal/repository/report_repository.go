package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/go-redis/redis/v8"
)

type ReportRepository interface {
	Save(ctx context.Context, rep *domain.BatchReport) error
	Get(ctx context.Context, taskID string) (*domain.BatchReport, error)
}

type reportRedisRepo struct {
	rdb            *redis.Client
	tz             *time.Location
	retentionHours int
}

func NewReportRepository(rdb *redis.Client, tz *time.Location, retentionHours int) ReportRepository {
	if retentionHours <= 0 {
		retentionHours = 24
	}
	return &reportRedisRepo{rdb: rdb, tz: tz, retentionHours: retentionHours}
}

func (r *reportRedisRepo) keyReportsHash() string { return "geoscope:reports" }
func (r *reportRedisRepo) keyTTLIndex() string    { return "geoscope:tasks:ttl" }

func (r *reportRedisRepo) Save(ctx context.Context, rep *domain.BatchReport) error {
	if rep.TaskID == "" {
		return fmt.Errorf("report without task id")
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := r.rdb.HSet(ctx, r.keyReportsHash(), rep.TaskID, string(b)).Err(); err != nil {
		return fmt.Errorf("redis HSET report: %w", err)
	}
	// Keep the report on the same retention schedule as its task record.
	score := float64(time.Now().In(r.tz).Add(time.Duration(r.retentionHours) * time.Hour).UTC().Unix())
	_ = r.rdb.ZAdd(ctx, r.keyTTLIndex(), &redis.Z{Score: score, Member: rep.TaskID}).Err()
	return nil
}

func (r *reportRedisRepo) Get(ctx context.Context, taskID string) (*domain.BatchReport, error) {
	js, err := r.rdb.HGet(ctx, r.keyReportsHash(), taskID).Result()
	if err == redis.Nil || js == "" {
		return nil, fmt.Errorf("not-found")
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET report: %w", err)
	}
	var rep domain.BatchReport
	if err := json.Unmarshal([]byte(js), &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}
