package metrics

import (
	"time"

	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/events"
)

// eventSink counts progress events into the collectors declared in metrics.go.
type eventSink struct{}

// NewEventSink creates an events.Sink that feeds scan, index and auto-scan
// counters.
func NewEventSink() events.Sink {
	return eventSink{}
}

func (eventSink) Publish(name string, payload any) {
	switch name {
	case events.ScanProgress:
		FilesScannedTotal.Inc()
	case events.IndexProgress:
		DocumentsIndexedTotal.Inc()
	case events.AutoScanStart:
		reason := "unknown"
		if p, ok := payload.(events.AutoScanStartPayload); ok && p.Reason != "" {
			reason = p.Reason
		}
		AutoScansStartedTotal.WithLabelValues(reason).Inc()
	}
}

// ObservePipelineStart marks a pipeline run in progress with the given size.
func ObservePipelineStart(workers int) {
	PipelineRunning.Inc()
	PipelineWorkers.Set(float64(workers))
}

// ObservePipelineEnd records the outcome of a pipeline run.
func ObservePipelineEnd(duration time.Duration, failed int, err error) {
	PipelineRunning.Dec()
	PipelineRunsTotal.WithLabelValues(statusOf(err)).Inc()
	PipelineDuration.Observe(duration.Seconds())
	DocumentsFailedTotal.Add(float64(failed))
}

// ObserveQuery records a query outcome.
func ObserveQuery(duration time.Duration, err error) {
	QueriesTotal.WithLabelValues(statusOf(err)).Inc()
	QueryDuration.Observe(duration.Seconds())
}

// ObserveDuplicates records a duplicate detection outcome.
func ObserveDuplicates(groups []domain.DupGroup, err error) {
	DuplicateDetectionsTotal.WithLabelValues(statusOf(err)).Inc()
	for _, g := range groups {
		DuplicateGroupsTotal.WithLabelValues(string(g.Kind)).Inc()
	}
}
