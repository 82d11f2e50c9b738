// Package metrics exposes Prometheus collectors for pagination runs.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	chunksTotal                prometheus.Counter
	pagesTotal                 prometheus.Counter
	chunkDurationSeconds       prometheus.Histogram
	boundaryProposalsTotal     *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		chunksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pdfchunker_chunks_total",
				Help: "Total number of chunks rendered and kept for merging.",
			},
		)

		pagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pdfchunker_pages_total",
				Help: "Total number of pages rendered across all chunks.",
			},
		)

		chunkDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdfchunker_chunk_duration_seconds",
				Help:    "Histogram of render plus count latency per chunk.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		boundaryProposalsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchunker_boundary_proposals_total",
				Help: "Boundary proposals, labeled by termination signal and whether the proposal was accepted.",
			},
			[]string{"signal", "accepted"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchunker_runs_total",
				Help: "Total number of pagination runs, labeled by result.",
			},
			[]string{"result"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfchunker_run_duration_seconds",
				Help:    "Wall time per pagination run.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdfchunker_active_workers",
				Help: "Number of workers currently claiming or rendering chunks.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveChunk records a rendered chunk.
func ObserveChunk(pages int, duration time.Duration) {
	chunksTotal.Inc()
	if pages > 0 {
		pagesTotal.Add(float64(pages))
	}
	chunkDurationSeconds.Observe(duration.Seconds())
}

// ObserveBoundary records a boundary proposal.
func ObserveBoundary(signal string, accepted bool) {
	if signal == "" {
		signal = "unknown"
	}
	boundaryProposalsTotal.WithLabelValues(signal, strconv.FormatBool(accepted)).Inc()
}

// ObserveRun records the outcome of a run.
func ObserveRun(result string, duration time.Duration) {
	runsTotal.WithLabelValues(result).Inc()
	runDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
