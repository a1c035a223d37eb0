package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scatter-gather Prometheus metrics.
var (
	GatherRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgather",
			Name:      "gather_requests_total",
			Help:      "Scatter-gather searches by outcome",
		},
		[]string{"mode", "outcome"}, // outcome: complete / partial / failed
	)

	GatherDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecgather",
			Name:      "gather_duration_seconds",
			Help:      "Time from scatter to merged result",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	MergedHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecgather",
			Name:      "merged_hits",
			Help:      "Number of hits in a merged result",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	ShardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgather",
			Name:      "shard_requests_total",
			Help:      "Per-shard search requests by status",
		},
		[]string{"shard", "status"}, // status: ok / error / canceled
	)

	ShardRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecgather",
			Name:      "shard_request_duration_seconds",
			Help:      "Per-shard search latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"shard"},
	)
)

var gatherMetricsRegistered bool

// RegisterGatherMetrics registers scatter-gather metrics. Must be called once from main.
func RegisterGatherMetrics() {
	if gatherMetricsRegistered {
		return
	}
	prometheus.MustRegister(GatherRequestsTotal)
	prometheus.MustRegister(GatherDuration)
	prometheus.MustRegister(MergedHits)
	prometheus.MustRegister(ShardRequestsTotal)
	prometheus.MustRegister(ShardRequestDuration)
	gatherMetricsRegistered = true
}
