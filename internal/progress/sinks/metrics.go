package sinks

import (
	"github.com/JakeFAU/pdfchunker/internal/metrics"
	"github.com/JakeFAU/pdfchunker/internal/progress"
)

// MetricsSink translates progress events into Prometheus observations.
type MetricsSink struct{}

// NewMetricsSink initializes the collectors and returns the sink.
func NewMetricsSink() *MetricsSink {
	metrics.Init()
	return &MetricsSink{}
}

// Consume records the event.
func (MetricsSink) Consume(evt progress.Event) {
	switch evt.Stage {
	case progress.StageWorkerStart:
		metrics.IncActiveWorkers()
	case progress.StageWorkerDone:
		metrics.DecActiveWorkers()
	case progress.StageChunkRendered:
		metrics.ObserveChunk(evt.Pages, evt.Dur)
	case progress.StageBoundary:
		metrics.ObserveBoundary(evt.Signal, evt.Accepted)
	case progress.StageRunDone:
		metrics.ObserveRun("succeeded", evt.Dur)
	case progress.StageRunError:
		metrics.ObserveRun("failed", evt.Dur)
	}
}
