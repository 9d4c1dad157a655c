package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// redisCollector exposes gauges over the durable record store so operators
// can see stored-task volume without a separate admin call.
type redisCollector struct {
	rdb    *redis.Client
	logger *slog.Logger

	tasksDesc    *prometheus.Desc
	reportsDesc  *prometheus.Desc
	retainedDesc *prometheus.Desc
}

func newRedisCollector(rdb *redis.Client, logger *slog.Logger) *redisCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisCollector{
		rdb:    rdb,
		logger: logger,
		tasksDesc: prometheus.NewDesc(
			"geoscope_tasks_stored",
			"Current number of stored task records by status.",
			[]string{"status"},
			nil,
		),
		reportsDesc: prometheus.NewDesc(
			"geoscope_reports_stored",
			"Current number of stored batch reports.",
			nil,
			nil,
		),
		retainedDesc: prometheus.NewDesc(
			"geoscope_retention_index_size",
			"Current number of ids in the retention index.",
			nil,
			nil,
		),
	}
}

func (c *redisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasksDesc
	ch <- c.reportsDesc
	ch <- c.retainedDesc
}

func (c *redisCollector) Collect(ch chan<- prometheus.Metric) {
	if c.rdb == nil {
		return
	}

	// Keep Redis reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tasks, err := c.rdb.HGetAll(ctx, "geoscope:tasks").Result()
	if err != nil && err != redis.Nil {
		c.logger.Warn("prometheus redis collector failed", "err", err)
		return
	}
	byStatus := map[domain.TaskStatus]int{}
	for _, js := range tasks {
		var t domain.AnalysisTask
		if err := json.Unmarshal([]byte(js), &t); err != nil {
			continue
		}
		byStatus[t.Status]++
	}
	for _, s := range []domain.TaskStatus{domain.StatusPending, domain.StatusRunning, domain.StatusCompleted, domain.StatusFailed, domain.StatusCanceled} {
		emitGauge(ch, c.tasksDesc, float64(byStatus[s]), string(s))
	}

	reports, err := c.rdb.HLen(ctx, "geoscope:reports").Result()
	if err == nil {
		emitGauge(ch, c.reportsDesc, float64(reports))
	}
	retained, err := c.rdb.ZCard(ctx, "geoscope:tasks:ttl").Result()
	if err == nil {
		emitGauge(ch, c.retainedDesc, float64(retained))
	}
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerRedisCollectorOnce sync.Once

func RegisterRedisCollector(rdb *redis.Client, logger *slog.Logger) {
	registerRedisCollectorOnce.Do(func() {
		prometheus.MustRegister(newRedisCollector(rdb, logger))
	})
}
