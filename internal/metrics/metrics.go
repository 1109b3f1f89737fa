// Package metrics exposes the ingest pipeline's queue depth and session
// counters as Prometheus gauges/counters, grounded on the teacher pack's
// two independent precedents for this exact library:
// mdzesseis-log_capturer_go's internal/metrics/metrics.go (package-level
// promauto vars, a Gauge per monitored resource) and vjache-cie's
// cmd/cie/index.go (promhttp.Handler mounted directly on the app's own
// mux rather than a dedicated metrics server).
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nightfoxfilms/ingestcore/internal/jobqueue"
	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

var (
	// JobQueueDepth mirrors jobqueue.Stats() by status (spec.md §4.6).
	JobQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestcore_jobqueue_depth",
		Help: "Number of jobs currently in each status",
	}, []string{"status"})

	// JobsRunning tracks the per-kind concurrent job count a Pool is
	// running right now (spec.md §4.6 concurrency caps).
	JobsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestcore_jobs_running",
		Help: "Jobs currently executing, by kind",
	}, []string{"kind"})

	// FilesProcessedTotal counts files the orchestrator has finished
	// handling, by outcome (spec.md §4.9 session counters).
	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestcore_files_processed_total",
		Help: "Files processed by an import session, by outcome",
	}, []string{"outcome"}) // copied | duplicate | error

	// BytesCopiedTotal sums archive bytes written across every session.
	BytesCopiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestcore_bytes_copied_total",
		Help: "Total bytes written to the archive across all sessions",
	})

	// SessionsByStatus gauges how many import sessions currently sit in
	// each state, incremented and decremented by the orchestrator on each
	// session status transition (spec.md §4.9).
	SessionsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestcore_sessions_by_status",
		Help: "Import sessions currently in each status",
	}, []string{"status"})
)

// Handler returns the standard Prometheus scrape handler, mounted by
// cmd/ingest's API server at GET /api/metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// PollQueueStats refreshes JobQueueDepth from one jobqueue.Stats() call.
// Called on a ticker by whatever process hosts the metrics endpoint
// (cmd/ingest serves it alongside the SSE job stream).
func PollQueueStats(ctx context.Context, q *jobqueue.Queue) {
	stats, err := q.Stats(ctx)
	if err != nil {
		logger.Warn("metrics: queue stats poll failed", "error", err)
		return
	}
	JobQueueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	JobQueueDepth.WithLabelValues("processing").Set(float64(stats.Processing))
	JobQueueDepth.WithLabelValues("complete").Set(float64(stats.Complete))
	JobQueueDepth.WithLabelValues("error").Set(float64(stats.Error))
	JobQueueDepth.WithLabelValues("dead").Set(float64(stats.Dead))
}
