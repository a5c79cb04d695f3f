// Package metrics exposes the process's Prometheus registry, following the
// teacher's metrics package shape (metrics/metrics.go: a single named struct
// of promauto-registered collectors, instantiated once into a package
// variable) but replaced end to end with this system's own surfaces: the
// worker pool (C5), the progress fabric (C3), the pipeline orchestrator
// (C4), the gateway (C7), and the opaque capability clients.
package metrics

import (
	"github.com/clipforge/highlighter/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics mirrors the teacher's per-dependency client metrics shape,
// reused here for each opaque capability (LLM, downloader, cutter).
type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func newClientMetrics(prefix string) ClientMetrics {
	return ClientMetrics{
		RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_retry_count",
			Help: "Number of retries on the most recent " + prefix + " call",
		}, []string{"operation"}),
		FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_failure_count",
			Help: "Total number of failed " + prefix + " calls",
		}, []string{"operation", "kind"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_request_duration_seconds",
			Help:    "Latency of " + prefix + " calls",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
	}
}

// HighlighterMetrics is the full set of collectors for one process
// (api or worker); every collector is registered by newMetrics, whichever
// binary runs.
type HighlighterMetrics struct {
	Version *prometheus.CounterVec

	// C5 worker pool
	PoolWorkersBusy      prometheus.Gauge
	PoolQueueDepth       *prometheus.GaugeVec
	PoolTasksDispatched  *prometheus.CounterVec
	PoolTasksFailed      *prometheus.CounterVec
	PoolTaskDurationSec  *prometheus.HistogramVec
	ProjectsInFlight     prometheus.Gauge

	// C4 pipeline orchestrator
	StageDurationSec   *prometheus.HistogramVec
	StageFailures      *prometheus.CounterVec
	StageRetries       *prometheus.CounterVec

	// C3 progress fabric
	ProgressPublished      *prometheus.CounterVec
	ProgressDropped        *prometheus.CounterVec
	ProgressSnapshotHits   prometheus.Counter
	ProgressSnapshotMisses prometheus.Counter

	// C7 gateway
	GatewayConnections       prometheus.Gauge
	GatewaySubscriptions     prometheus.Gauge
	GatewayOutboundDropped   *prometheus.CounterVec
	GatewayHeartbeatTimeouts prometheus.Counter

	// C6 data sync
	DataSyncRuns    *prometheus.CounterVec
	DataSyncRowsOut *prometheus.CounterVec

	// C2 content store
	ContentBytesWritten prometheus.Counter

	// C8 HTTP surface
	HTTPRequestsInFlight prometheus.Gauge
	HTTPRequestDuration  *prometheus.HistogramVec

	// Opaque capability clients
	LLMClient        ClientMetrics
	DownloaderClient ClientMetrics
	CutterClient     ClientMetrics
}

func newMetrics() *HighlighterMetrics {
	m := &HighlighterMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "version",
			Help: "Current version running, incremented once on startup",
		}, []string{"app", "version"}),

		PoolWorkersBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_workers_busy",
			Help: "Number of pool workers currently executing a task",
		}),
		PoolQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_queue_depth",
			Help: "Number of tasks waiting in the pool queue, by priority class",
		}, []string{"priority"}),
		PoolTasksDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_tasks_dispatched_total",
			Help: "Total number of tasks dispatched to a worker",
		}, []string{"kind", "priority"}),
		PoolTasksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_tasks_failed_total",
			Help: "Total number of tasks that completed with an error",
		}, []string{"kind", "error_kind"}),
		PoolTaskDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_task_duration_seconds",
			Help:    "Wall time from dispatch to completion for one task",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"kind"}),
		ProjectsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "projects_in_flight",
			Help: "Number of projects with a task currently running",
		}),

		StageDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Time taken to execute one pipeline stage",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_failures_total",
			Help: "Total number of stage executions that returned an error",
		}, []string{"stage", "error_kind"}),
		StageRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_retries_total",
			Help: "Total number of stage-internal retry attempts (e.g. LLM calls)",
		}, []string{"stage"}),

		ProgressPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_published_total",
			Help: "Total number of progress events published",
		}, []string{"stage"}),
		ProgressDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_dropped_total",
			Help: "Total number of progress events dropped as non-monotone",
		}, []string{"reason"}),
		ProgressSnapshotHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "progress_snapshot_hits_total",
			Help: "Total number of snapshot reads served from the fabric",
		}),
		ProgressSnapshotMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "progress_snapshot_misses_total",
			Help: "Total number of snapshot reads that found nothing",
		}),

		GatewayConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_connections",
			Help: "Number of currently open websocket connections",
		}),
		GatewaySubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_subscriptions",
			Help: "Number of distinct channel subscriptions across all connections",
		}),
		GatewayOutboundDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_outbound_dropped_total",
			Help: "Total number of outbound frames dropped for backpressure",
		}, []string{"reason"}),
		GatewayHeartbeatTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gateway_heartbeat_timeouts_total",
			Help: "Total number of connections closed because a heartbeat ping could not be written",
		}),

		DataSyncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "datasync_runs_total",
			Help: "Total number of data-sync reconciliation runs",
		}, []string{"result"}),
		DataSyncRowsOut: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "datasync_rows_written_total",
			Help: "Total number of rows written by data-sync",
		}, []string{"table"}),

		ContentBytesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "content_bytes_written_total",
			Help: "Total number of bytes written to the content store",
		}),

		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route and status",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route", "method", "status"}),

		LLMClient:        newClientMetrics("llm_client"),
		DownloaderClient: newClientMetrics("downloader_client"),
		CutterClient:     newClientMetrics("cutter_client"),
	}

	m.Version.WithLabelValues("highlighter", config.Version).Inc()
	return m
}

// Metrics is the process-wide collector set, following the teacher's
// package-level var Metrics convention.
var Metrics = newMetrics()
