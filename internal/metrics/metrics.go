package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operation metrics (research / archive)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentic_operations_total",
			Help: "Total number of pipeline operations by outcome",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentic_operation_duration_seconds",
			Help:    "End-to-end pipeline operation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"operation"},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentic_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	// Archive metrics
	DocumentFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentic_document_fetch_total",
			Help: "Document byte fetches during archival by result",
		},
		[]string{"result"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentic_cache_lookups_total",
			Help: "Prefix cache lookups by result",
		},
		[]string{"result"},
	)

	// Synthesis backend usage
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentic_reports_generated_total",
			Help: "Reports generated by synthesis backend",
		},
		[]string{"backend"},
	)
)

// Status returns the label used for an error outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveStage records a stage duration.
func ObserveStage(stage string, start time.Time, err error) {
	StageDuration.WithLabelValues(stage, Status(err)).Observe(time.Since(start).Seconds())
}

// ObserveOperation records an operation outcome and duration.
func ObserveOperation(operation string, start time.Time, err error) {
	OperationsTotal.WithLabelValues(operation, Status(err)).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
