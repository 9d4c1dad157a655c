package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "geoscope"

var (
	BatchLaunchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_launched_total",
			Help:      "Total number of analysis batches launched.",
		},
		[]string{"provider"},
	)

	BatchCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_completed_total",
			Help:      "Total number of analysis batches finished, labeled by final status.",
		},
		[]string{"provider", "status"},
	)

	BatchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "End-to-end batch duration from launch to report (seconds).",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"provider", "status"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of prompt dispatches, labeled by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	DispatchLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of a single provider dispatch (seconds).",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)

	MentionHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mention_hits_total",
			Help:      "Total number of successful responses containing at least one mention.",
		},
		[]string{"kind"}, // brand | domain
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total number of completion webhook deliveries, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"scope", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		BatchLaunchedTotal,
		BatchCompletedTotal,
		BatchDurationSeconds,
		DispatchTotal,
		DispatchLatencySeconds,
		MentionHitsTotal,
		WebhookDeliveriesTotal,
		RateLimitHitsTotal,
	)
}
