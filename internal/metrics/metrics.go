// Package metrics exposes Prometheus collectors for the ingestion service.
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
	ingestScansTotal           *prometheus.CounterVec
	ingestCandidatesTotal      *prometheus.CounterVec
	pipelineRunsTotal          *prometheus.CounterVec
	providerCallsTotal         *prometheus.CounterVec
	quotaHealthState           *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestScansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_scans_total",
				Help: "Total listing-page scans, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		ingestCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_candidates_total",
				Help: "Total candidate references discovered, labeled by source.",
			},
			[]string{"source"},
		)

		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_pipeline_runs_total",
				Help: "Total pipeline runs, labeled by terminal stage and status.",
			},
			[]string{"stage", "status"},
		)

		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_provider_calls_total",
				Help: "Total extraction provider calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		quotaHealthState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ingest_quota_health",
				Help: "Quota governor health per provider (0 healthy, 1 warning, 2 overload).",
			},
			[]string{"provider"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScan records one source scan and the candidates it produced.
func ObserveScan(source, outcome string, candidates int) {
	if ingestScansTotal == nil {
		return
	}
	ingestScansTotal.WithLabelValues(source, outcome).Inc()
	if candidates > 0 {
		ingestCandidatesTotal.WithLabelValues(source).Add(float64(candidates))
	}
}

// ObservePipelineRun records one pipeline run's terminal stage and status.
func ObservePipelineRun(stage, status string) {
	if pipelineRunsTotal == nil {
		return
	}
	pipelineRunsTotal.WithLabelValues(stage, status).Inc()
}

// ObserveProviderCall records one extraction provider call.
func ObserveProviderCall(provider, outcome string) {
	if providerCallsTotal == nil {
		return
	}
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetQuotaHealth exports the governor's health state for one provider.
func SetQuotaHealth(provider string, state float64) {
	if quotaHealthState == nil {
		return
	}
	quotaHealthState.WithLabelValues(provider).Set(state)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
