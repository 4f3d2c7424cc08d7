package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_scored_total",
			Help: "Total number of items scored, by source and tier",
		},
		[]string{"source", "tier"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of jobs processed, by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: succeeded, retried, failed
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"type"},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_matches_total",
			Help: "Total number of automation rule matches",
		},
		[]string{"trigger", "action"},
	)

	DigestBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_builds_total",
			Help: "Total number of digests built, by window type",
		},
		[]string{"window"},
	)

	EnrichCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrich_call_latency_ms",
			Help:    "Completion service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries exceeding the slow query threshold",
		},
	)
)

func RecordItemScored(source, tier string) {
	ItemsScored.WithLabelValues(source, tier).Inc()
}

func RecordJobProcessed(jobType, outcome string, duration time.Duration) {
	JobsProcessed.WithLabelValues(jobType, outcome).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

func RecordRuleMatch(trigger, action string) {
	RuleMatches.WithLabelValues(trigger, action).Inc()
}

func RecordDigestBuild(window string) {
	DigestBuilds.WithLabelValues(window).Inc()
}

func RecordEnrichCallLatency(endpoint, status string, duration time.Duration) {
	EnrichCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
