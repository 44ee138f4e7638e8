package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 同步周期耗时（秒）
	SyncCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lean_sync_cycle_duration_seconds",
			Help:    "Duration of a full push/pull sync cycle in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"status"}, // status: success, partial, aborted
	)

	// 同步条目计数
	SyncEntriesCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lean_sync_entries_total",
			Help: "Total number of entries moved by the sync engine",
		},
		[]string{"direction", "outcome"}, // direction: push, pull
	)

	// 隔离条目计数
	QuarantineCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lean_sync_quarantined_total",
			Help: "Total number of entries quarantined after repeated permanent failures",
		},
	)

	// 富化耗时（毫秒）
	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lean_enrichment_duration_ms",
			Help:    "Enrichment processing duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms to ~8s
		},
		[]string{"method", "status"},
	)

	// LU 调用延迟（毫秒）
	LUCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lean_lu_call_latency_ms",
			Help:    "Language-understanding call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"operation", "status"},
	)

	// 事件分级计数
	EventBandCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lean_event_band_total",
			Help: "Candidate events by confidence band",
		},
		[]string{"band"}, // band: commit, shadow, discard
	)

	// 模式重算耗时（秒）
	PatternRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lean_pattern_recompute_duration_seconds",
			Help:    "Pattern engine recompute duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lean_slow_query_total",
			Help: "Total number of remote queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lean_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordSyncCycle 记录同步周期耗时
func RecordSyncCycle(status string, duration time.Duration) {
	SyncCycleDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncrementSyncEntries 增加同步条目计数
func IncrementSyncEntries(direction, outcome string, n int) {
	if n <= 0 {
		return
	}
	SyncEntriesCount.WithLabelValues(direction, outcome).Add(float64(n))
}

// IncrementQuarantine 增加隔离计数
func IncrementQuarantine() {
	QuarantineCount.Inc()
}

// RecordEnrichment 记录富化耗时
func RecordEnrichment(method, status string, duration time.Duration) {
	EnrichmentDuration.WithLabelValues(method, status).Observe(float64(duration.Milliseconds()))
}

// RecordLUCallLatency 记录 LU 调用延迟
func RecordLUCallLatency(operation, status string, duration time.Duration) {
	LUCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// IncrementEventBand 增加事件分级计数
func IncrementEventBand(band string) {
	EventBandCount.WithLabelValues(band).Inc()
}

// RecordPatternRecompute 记录模式重算耗时
func RecordPatternRecompute(duration time.Duration) {
	PatternRecomputeDuration.Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(statement string, _ time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
