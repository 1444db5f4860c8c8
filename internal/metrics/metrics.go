// Package metrics holds the prometheus collectors for ingestion and retrieval.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage labels for StageFailures.
const (
	StageExtraction = "extraction"
	StageSummary    = "summary"
	StageEmbedding  = "embedding"
	StageInsights   = "insights"
	StageStatus     = "status"
)

// Metrics groups the pipeline and retrieval collectors.
type Metrics struct {
	// SourcesProcessed counts finished pipeline runs by kind and final status.
	SourcesProcessed *prometheus.CounterVec

	// StageFailures counts caught failures by pipeline stage.
	StageFailures *prometheus.CounterVec

	// ChunksEmbedded counts chunks by embedding outcome ("ok" or "null").
	ChunksEmbedded *prometheus.CounterVec

	// ExtractionDuration observes extraction latency by kind.
	ExtractionDuration *prometheus.HistogramVec

	// ActiveJobs is the number of pipeline jobs currently running.
	ActiveJobs prometheus.Gauge

	// SearchRequests counts searches by mode ("semantic" or "hybrid").
	SearchRequests *prometheus.CounterVec

	// SearchResults counts returned results by match type.
	SearchResults *prometheus.CounterVec

	// SearchDuration observes retrieval latency.
	SearchDuration prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide collectors, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			SourcesProcessed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dossier_sources_processed_total",
					Help: "Total number of finished pipeline runs",
				},
				[]string{"kind", "status"},
			),
			StageFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dossier_stage_failures_total",
					Help: "Total number of caught pipeline stage failures",
				},
				[]string{"stage"},
			),
			ChunksEmbedded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dossier_chunks_embedded_total",
					Help: "Total number of chunks persisted, by embedding outcome",
				},
				[]string{"result"},
			),
			ExtractionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "dossier_extraction_duration_seconds",
					Help:    "Content extraction duration in seconds",
					Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
				},
				[]string{"kind"},
			),
			ActiveJobs: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "dossier_pipeline_active_jobs",
					Help: "Number of pipeline jobs currently running",
				},
			),
			SearchRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dossier_search_requests_total",
					Help: "Total number of retrieval requests",
				},
				[]string{"mode"},
			),
			SearchResults: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dossier_search_results_total",
					Help: "Total number of retrieval results returned, by match type",
				},
				[]string{"match_type"},
			),
			SearchDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "dossier_search_duration_seconds",
					Help:    "Retrieval duration in seconds",
					Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
				},
			),
		}
	})
	return instance
}

// Handler returns an HTTP handler exposing the default registry.
func Handler() http.Handler {
	Get()
	return promhttp.Handler()
}
