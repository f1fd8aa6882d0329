// Package metrics declares the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcopilot_poll_cycles_total",
			Help: "Poll cycles by outcome",
		},
		[]string{"outcome"}, // claimed, empty, skipped, error
	)

	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcopilot_jobs_submitted_total",
			Help: "Job descriptions accepted for analysis",
		},
		[]string{"input_type", "source"}, // source: http, ingest
	)

	JobsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcopilot_jobs_completed_total",
			Help: "Jobs whose analysis completed",
		},
	)

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcopilot_jobs_failed_total",
			Help: "Jobs recorded as failed, by error code",
		},
		[]string{"code"},
	)

	LeaseLostTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcopilot_lease_lost_total",
			Help: "Complete or fail writes dropped because the lease had moved on",
		},
	)

	JobsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcopilot_jobs_reaped_total",
			Help: "Expired leases failed after exhausting their attempts",
		},
	)

	CallerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobcopilot_pool_caller_runs_total",
			Help: "Tasks run on the submitting goroutine because the queue was full",
		},
	)

	// Gauges
	PoolQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobcopilot_pool_queue_depth",
			Help: "Tasks waiting in the worker pool queue",
		},
	)

	PoolActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobcopilot_pool_active_workers",
			Help: "Workers currently running a task",
		},
	)

	// Histograms
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobcopilot_stage_duration_seconds",
			Help:    "Pipeline stage latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"pipeline", "stage", "success"},
	)

	AnalysisDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobcopilot_analysis_duration_seconds",
			Help:    "End-to-end analysis time of a claimed job",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"outcome"}, // completed, failed, lease_lost
	)

	OCRToolSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobcopilot_ocr_tool_seconds",
			Help:    "Wall time of pdftotext, pdftoppm and tesseract runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"tool", "outcome"},
	)
)

// ObserveStage matches pipeline.StageObserver.
func ObserveStage(pipeline, stage string, elapsed time.Duration, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	StageDurationSeconds.WithLabelValues(pipeline, stage, success).Observe(elapsed.Seconds())
}
