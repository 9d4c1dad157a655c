package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type TaskRepository interface {
	Create(ctx context.Context, task domain.AnalysisTask) (*domain.AnalysisTask, error)
	Get(ctx context.Context, id string) (*domain.AnalysisTask, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.AnalysisTask, error)
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, completedPrompts int, errorMsg string) error
	CleanupExpired(ctx context.Context, limit int, before time.Time) (int, error)
}

type taskRedisRepo struct {
	rdb            *redis.Client
	tz             *time.Location
	retentionHours int
}

func NewTaskRepository(rdb *redis.Client, tz *time.Location, retentionHours int) TaskRepository {
	if retentionHours <= 0 {
		retentionHours = 24
	}
	return &taskRedisRepo{rdb: rdb, tz: tz, retentionHours: retentionHours}
}

// ===== Redis keys =====
func (r *taskRedisRepo) keyTasksHash() string   { return "geoscope:tasks" }   // HASH: field = id, value = JSON
func (r *taskRedisRepo) keyReportsHash() string { return "geoscope:reports" } // HASH: field = id, value = report JSON
func (r *taskRedisRepo) keyTTLIndex() string    { return "geoscope:tasks:ttl" }
func (r *taskRedisRepo) keyOwnerIndex(ownerID string) string {
	return fmt.Sprintf("geoscope:owner:%s:tasks", ownerID)
}

func (r *taskRedisRepo) now() time.Time { return time.Now().In(r.tz) }

func (r *taskRedisRepo) retainUntil() float64 {
	return float64(r.now().Add(time.Duration(r.retentionHours) * time.Hour).UTC().Unix())
}

func (r *taskRedisRepo) Create(ctx context.Context, task domain.AnalysisTask) (*domain.AnalysisTask, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = domain.StatusPending
	}
	task.CreatedAt = r.now()
	task.UpdatedAt = task.CreatedAt

	b, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.keyTasksHash(), task.ID, string(b))
	pipe.ZAdd(ctx, r.keyTTLIndex(), &redis.Z{Score: r.retainUntil(), Member: task.ID})
	if task.OwnerID != "" {
		pipe.SAdd(ctx, r.keyOwnerIndex(task.OwnerID), task.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis create task: %w", err)
	}
	return &task, nil
}

func (r *taskRedisRepo) Get(ctx context.Context, id string) (*domain.AnalysisTask, error) {
	js, err := r.rdb.HGet(ctx, r.keyTasksHash(), id).Result()
	if err == redis.Nil || js == "" {
		return nil, fmt.Errorf("not-found")
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET task: %w", err)
	}
	var t domain.AnalysisTask
	if err := json.Unmarshal([]byte(js), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

func (r *taskRedisRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.AnalysisTask, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := r.rdb.SMembers(ctx, r.keyOwnerIndex(ownerID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis SMEMBERS owner: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.keyTasksHash(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HMGET tasks: %w", err)
	}
	tasks := make([]domain.AnalysisTask, 0, len(vals))
	for _, v := range vals {
		js, ok := v.(string)
		if !ok || js == "" {
			continue
		}
		var t domain.AnalysisTask
		if err := json.Unmarshal([]byte(js), &t); err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	// Newest first; the owner index is a set, so order is re-derived here.
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			if tasks[j].CreatedAt.After(tasks[i].CreatedAt) {
				tasks[i], tasks[j] = tasks[j], tasks[i]
			}
		}
	}
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *taskRedisRepo) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, completedPrompts int, errorMsg string) error {
	t, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	t.Status = status
	t.CompletedPrompts = completedPrompts
	t.Error = errorMsg
	t.UpdatedAt = r.now()
	if status.Terminal() {
		t.CompletedAt = r.now().Format(time.RFC3339)
	}

	b, _ := json.Marshal(t)
	if err := r.rdb.HSet(ctx, r.keyTasksHash(), id, string(b)).Err(); err != nil {
		return fmt.Errorf("redis HSET task: %w", err)
	}
	// bump logical retention
	_ = r.rdb.ZAdd(ctx, r.keyTTLIndex(), &redis.Z{Score: r.retainUntil(), Member: id}).Err()
	return nil
}

// CleanupExpired removes task records and reports whose retention score in
// the Z index fell at or before the cutoff.
func (r *taskRedisRepo) CleanupExpired(ctx context.Context, limit int, before time.Time) (int, error) {
	if limit <= 0 {
		limit = 1000
	}
	ids, err := r.rdb.ZRangeByScore(ctx, r.keyTTLIndex(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", before.UTC().Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("redis ZRANGEBYSCORE ttl: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	owners := make(map[string][]interface{})
	for _, id := range ids {
		if t, err := r.Get(ctx, id); err == nil && t.OwnerID != "" {
			owners[t.OwnerID] = append(owners[t.OwnerID], id)
		}
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := r.rdb.TxPipeline()
	pipe.HDel(ctx, r.keyTasksHash(), ids...)
	pipe.HDel(ctx, r.keyReportsHash(), ids...)
	pipe.ZRem(ctx, r.keyTTLIndex(), members...)
	for owner, ownedIDs := range owners {
		pipe.SRem(ctx, r.keyOwnerIndex(owner), ownedIDs...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis cleanup: %w", err)
	}
	return len(ids), nil
}
