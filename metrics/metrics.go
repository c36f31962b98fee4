// Package metrics provides Prometheus metrics collection for the
// homologos API. It covers the HTTP surface (request counts, latency,
// in-flight gauge) and the model lifecycle (training duration, record and
// exclusion counts, cluster count, query outcomes).
//
// All metrics are automatically registered with the Prometheus default
// registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of model training runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	TrainingRecordsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_records_total",
			Help: "Records in the last training batch",
		},
	)

	TrainingExcludedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_excluded_total",
			Help: "Records excluded from the last training run",
		},
	)

	ModelClusters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_clusters",
			Help: "Cluster count of the published model snapshot",
		},
	)

	HomologQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homolog_queries_total",
			Help: "Homolog queries by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(TrainingDuration)
	prometheus.MustRegister(TrainingRecordsTotal)
	prometheus.MustRegister(TrainingExcludedTotal)
	prometheus.MustRegister(ModelClusters)
	prometheus.MustRegister(HomologQueriesTotal)
}
