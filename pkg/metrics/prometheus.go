// Package metrics provides Prometheus metrics for the codegolf scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scoring service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Submission pipeline
	submissionsAccepted  *prometheus.CounterVec
	submissionsDuplicate prometheus.Counter
	submissionsRejected  *prometheus.CounterVec
	scoringLatency       prometheus.Histogram
	minimumImprovements  prometheus.Counter
	estimatesServed      prometheus.Counter

	// Operational health
	queueSize        prometheus.Gauge
	workerCount      prometheus.Gauge
	totalChallenges  prometheus.Gauge
	totalSubmitters  prometheus.Gauge
	totalSubmissions prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Repository snapshots
	repositorySnapshotRebuildDuration prometheus.Histogram
	repositorySnapshotCount           prometheus.Counter
	repositorySnapshotLastUnix        prometheus.Gauge
	repositoryUpdateLatency           prometheus.Histogram
	repositoryQueryLatency            prometheus.Histogram

	// Queue
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Dispatch workers
	dispatchPublished prometheus.Counter
	dispatchErrors    prometheus.Counter
	dispatchLatency   prometheus.Histogram

	// Catalog fetches
	catalogFetches       *prometheus.CounterVec
	catalogFetchLatency  prometheus.Histogram
	catalogLastRefreshTS prometheus.Gauge

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "codegolf",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(n, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(n, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(n, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(n, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	b := m.histogramBuckets

	m.submissionsAccepted = m.counterVec("submissions_accepted_total", "Accepted submissions by challenge", "challenge_id")
	m.submissionsDuplicate = m.counter("submissions_duplicate_total", "Replayed submissions answered from the idempotency cache")
	m.submissionsRejected = m.counterVec("submissions_rejected_total", "Rejected submissions by reason", "reason")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Time spent evaluating a submission under the per-challenge lock", b)
	m.minimumImprovements = m.counter("minimum_improvements_total", "Submissions that lowered a challenge's minimum byte length")
	m.estimatesServed = m.counter("estimates_total", "Score estimates served without acceptance")

	m.queueSize = m.gauge("queue_size", "Current size of the dispatch queue")
	m.workerCount = m.gauge("worker_count", "Configured dispatch workers")
	m.totalChallenges = m.gauge("challenges_total", "Challenges known to the service")
	m.totalSubmitters = m.gauge("submitters_total", "Distinct handles on the ladder")
	m.totalSubmissions = m.gauge("submissions_total", "Accepted submissions held in history")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: b, ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.rateLimited = m.counter("http_rate_limited_total", "Requests rejected by the submission rate limiter")

	m.repositorySnapshotRebuildDuration = m.histogram("repository_snapshot_rebuild_duration_milliseconds", "Snapshot publish duration in milliseconds", b)
	m.repositorySnapshotCount = m.counter("repository_snapshot_count_total", "Snapshots published")
	m.repositorySnapshotLastUnix = m.gauge("repository_snapshot_last_unix", "Unix timestamp of the last snapshot publish")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Repository append latency in milliseconds", b)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Ranking and ladder query latency in milliseconds", b)

	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Messages enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Messages dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue failures")

	m.dispatchPublished = m.counter("dispatch_published_total", "Accepted submissions handed to the publisher")
	m.dispatchErrors = m.counter("dispatch_errors_total", "Publisher failures")
	m.dispatchLatency = m.histogram("dispatch_latency_milliseconds", "Publish latency in milliseconds", b)

	m.catalogFetches = m.counterVec("catalog_fetches_total", "Catalog fetches by resource and outcome", "resource", "outcome")
	m.catalogFetchLatency = m.histogram("catalog_fetch_latency_milliseconds", "Catalog fetch latency in milliseconds", b)
	m.catalogLastRefreshTS = m.gauge("catalog_last_refresh_unix", "Unix timestamp of the last successful catalog refresh")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordSubmissionAccepted counts an accepted submission.
func RecordSubmissionAccepted(challengeID string) {
	globalManager.submissionsAccepted.WithLabelValues(challengeID).Inc()
}

// RecordSubmissionDuplicate counts a replayed submission.
func RecordSubmissionDuplicate() { globalManager.submissionsDuplicate.Inc() }

// RecordSubmissionRejected counts a rejected submission by reason.
func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordScoringLatency records evaluation latency in milliseconds.
func RecordScoringLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }

// RecordMinimumImprovement counts a lowered minimum.
func RecordMinimumImprovement() { globalManager.minimumImprovements.Inc() }

// RecordEstimate counts a served estimate.
func RecordEstimate() { globalManager.estimatesServed.Inc() }

func UpdateQueueSize(size int)          { globalManager.queueSize.Set(float64(size)) }
func UpdateWorkerCount(count int)       { globalManager.workerCount.Set(float64(count)) }
func UpdateTotalChallenges(count int)   { globalManager.totalChallenges.Set(float64(count)) }
func UpdateTotalSubmitters(count int)   { globalManager.totalSubmitters.Set(float64(count)) }
func UpdateTotalSubmissions(count int)  { globalManager.totalSubmissions.Set(float64(count)) }
func UpdateQueueCapacity(capacity int)  { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(u float64)  { globalManager.queueUtilization.Set(u) }
func RecordQueueEnqueue()               { globalManager.queueEnqueue.Inc() }
func RecordQueueDequeue()               { globalManager.queueDequeue.Inc() }
func RecordQueueEnqueueError()          { globalManager.queueEnqueueErrors.Inc() }
func RecordRateLimited()                { globalManager.rateLimited.Inc() }
func RecordDispatchPublished()          { globalManager.dispatchPublished.Inc() }
func RecordDispatchError()              { globalManager.dispatchErrors.Inc() }
func RecordDispatchLatency(ms float64)  { globalManager.dispatchLatency.Observe(ms) }
func RecordCatalogLatency(ms float64)   { globalManager.catalogFetchLatency.Observe(ms) }
func UpdateCatalogLastRefresh(ts int64) { globalManager.catalogLastRefreshTS.Set(float64(ts)) }

// RecordCatalogFetch counts a catalog fetch outcome ("ok", "error", "retry").
func RecordCatalogFetch(resource, outcome string) {
	globalManager.catalogFetches.WithLabelValues(resource, outcome).Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository metrics.

func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

func RecordRepositorySnapshotRebuildDuration(ms float64) {
	globalManager.repositorySnapshotRebuildDuration.Observe(ms)
	globalManager.repositorySnapshotCount.Inc()
	globalManager.repositorySnapshotLastUnix.Set(float64(time.Now().Unix()))
}

// Error metrics.

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry used for all metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
