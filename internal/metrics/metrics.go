package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan and index metrics
var (
	FilesScannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_every_files_scanned_total",
			Help: "Total number of files discovered by scans",
		},
	)

	DocumentsIndexedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_every_documents_indexed_total",
			Help: "Total number of documents written to an index",
		},
	)

	DocumentsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_every_documents_failed_total",
			Help: "Total number of documents the writer rejected",
		},
	)
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_every_pipeline_runs_total",
			Help: "Total number of scan-and-index pipeline runs",
		},
		[]string{"status"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_every_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	PipelineWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_every_pipeline_workers",
			Help: "Worker count of the most recent pipeline run",
		},
	)

	PipelineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_every_pipeline_running",
			Help: "Number of pipeline runs in progress",
		},
	)

	AutoScansStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_every_auto_scans_started_total",
			Help: "Total number of background scans launched",
		},
		[]string{"reason"},
	)
)

// Query and duplicate metrics
var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_every_queries_total",
			Help: "Total number of index queries",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_every_query_duration_seconds",
			Help:    "Query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	DuplicateGroupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_every_duplicate_groups_total",
			Help: "Total number of duplicate groups reported",
		},
		[]string{"kind"},
	)

	DuplicateDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_every_duplicate_detections_total",
			Help: "Total number of duplicate detection calls",
		},
		[]string{"status"},
	)
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
