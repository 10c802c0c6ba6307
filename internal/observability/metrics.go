package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	buildResultsTotal    *prometheus.CounterVec
	reconcileDuration    prometheus.Histogram
	duplicateResults     prometheus.Counter
	realtimeClients      prometheus.Gauge
	ltiScorePushTotal    *prometheus.CounterVec
	rebuildsQueuedTotal  *prometheus.CounterVec
	artifactMirrorsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		buildResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ci_build_results_total",
			Help: "Build result notifications handled, by outcome.",
		}, []string{"outcome"})

		reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ci_reconcile_duration_seconds",
			Help:    "Time spent reconciling a build result with its submission.",
			Buckets: prometheus.DefBuckets,
		})

		duplicateResults = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ci_duplicate_results_total",
			Help: "Automatic results attached to a submission that already had one.",
		})

		realtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ci_realtime_clients_active",
			Help: "Websocket clients subscribed to participation result topics.",
		})

		ltiScorePushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lti_score_push_total",
			Help: "LTI outcome pushes, by status.",
		}, []string{"status"})

		rebuildsQueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ci_rebuilds_queued_total",
			Help: "Builds queued after test case changes, by status.",
		}, []string{"status"})

		artifactMirrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ci_artifact_mirrors_total",
			Help: "Build artifacts copied to the artifact mirror, by status.",
		}, []string{"status"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			buildResultsTotal, reconcileDuration, duplicateResults, realtimeClients,
			ltiScorePushTotal, rebuildsQueuedTotal, artifactMirrorsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// BuildResults exposes the counter of handled build result notifications.
func BuildResults() *prometheus.CounterVec {
	RegisterMetrics()
	return buildResultsTotal
}

// ReconcileDuration exposes the reconciliation latency histogram.
func ReconcileDuration() prometheus.Histogram {
	RegisterMetrics()
	return reconcileDuration
}

// DuplicateResults exposes the duplicate automatic result counter.
func DuplicateResults() prometheus.Counter {
	RegisterMetrics()
	return duplicateResults
}

// RealtimeClientsActive exposes the gauge of connected websocket clients.
func RealtimeClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return realtimeClients
}

// LTIScorePushes exposes the LTI outcome push counter.
func LTIScorePushes() *prometheus.CounterVec {
	RegisterMetrics()
	return ltiScorePushTotal
}

// RebuildsQueued exposes the counter of builds queued after test case changes.
func RebuildsQueued() *prometheus.CounterVec {
	RegisterMetrics()
	return rebuildsQueuedTotal
}

// ArtifactMirrors exposes the artifact mirror counter.
func ArtifactMirrors() *prometheus.CounterVec {
	RegisterMetrics()
	return artifactMirrorsTotal
}
