// Package metrics provides Prometheus metrics for the akut grading service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Grade statuses accepted by RecordGrade.
const (
	statusGreen  = "GREEN"
	statusYellow = "YELLOW"
	statusRed    = "RED"
)

// Manager manages all Prometheus metrics for the akut service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Grading
	evaluations        *prometheus.CounterVec
	grades             *prometheus.CounterVec
	extraActions       prometheus.Counter
	evaluationLatency  prometheus.Histogram
	evaluatorRecovered prometheus.Counter
	runScore           prometheus.Histogram

	// Timeline merging
	remoteEventsMerged prometheus.Counter
	unmappedEvents     prometheus.Counter

	// Intake
	sessionEvents        prometheus.Counter
	sessionEventsDup     prometheus.Counter
	runsSubmitted        prometheus.Counter
	runsDuplicate        prometheus.Counter
	runsGraded           prometheus.Counter
	runsFailed           *prometheus.CounterVec
	catalogCases         prometheus.Gauge
	catalogRejected      prometheus.Counter
	catalogLintWarnings  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryRecords       prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "akut",
		subsystem:        "grader",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.evaluations = m.counterVec("evaluations_total",
		"Case evaluations by origin (sync request or worker)", "origin")
	m.grades = m.counterVec("grades_total",
		"Graded expected actions by status", "status")
	m.extraActions = m.counter("extra_actions_total",
		"Logged actions the scenario did not expect")
	m.evaluationLatency = m.histogram("evaluation_latency_milliseconds",
		"Merge plus evaluation latency in milliseconds", m.histogramBuckets)
	m.evaluatorRecovered = m.counter("evaluator_recovered_total",
		"Evaluations that panicked and fell back to an empty result")
	m.runScore = m.histogram("run_score",
		"Distribution of graded run scores (0-100)", prometheus.LinearBuckets(0, 10, 11))

	m.remoteEventsMerged = m.counter("remote_events_merged_total",
		"Remote device events translated into the action timeline")
	m.unmappedEvents = m.counter("remote_events_unmapped_total",
		"Remote device events with no translation entry (passed through)")

	m.sessionEvents = m.counter("session_events_total",
		"Session events accepted")
	m.sessionEventsDup = m.counter("session_events_duplicate_total",
		"Session events dropped as redeliveries")
	m.runsSubmitted = m.counter("runs_submitted_total",
		"Runs accepted for asynchronous grading")
	m.runsDuplicate = m.counter("runs_duplicate_total",
		"Run submissions dropped as duplicates")
	m.runsGraded = m.counter("runs_graded_total",
		"Runs graded and stored")
	m.runsFailed = m.counterVec("runs_failed_total",
		"Runs that could not be graded or stored", "reason")
	m.catalogCases = m.gauge("catalog_cases",
		"Scenarios currently loaded in the catalog")
	m.catalogRejected = m.counter("catalog_rejected_total",
		"Scenario documents rejected by the linter")
	m.catalogLintWarnings = m.counter("catalog_lint_warnings_total",
		"Lint warnings reported while loading scenarios")

	m.queueSize = m.gauge("queue_size", "Current number of queued run submissions")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization (0.0 to 1.0)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Submissions enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Submissions dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Rejected enqueue attempts")

	m.workerCount = m.gauge("worker_count", "Number of grading workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time to grade and store one submission", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker processing errors")

	m.repositoryRecords = m.gauge("repository_records_total", "Runs held in the repository")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Repository write latency", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Repository read latency", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and error type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint, method and error type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap allocation in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordEvaluation counts one evaluation and its latency.
func RecordEvaluation(origin string, latencyMs float64) {
	globalManager.evaluations.WithLabelValues(origin).Inc()
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordGrade counts one graded expected action.
func RecordGrade(status string) error {
	switch status {
	case statusGreen, statusYellow, statusRed:
		globalManager.grades.WithLabelValues(status).Inc()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
}

// RecordExtraActions adds n unexpected actions.
func RecordExtraActions(n int) {
	globalManager.extraActions.Add(float64(n))
}

// RecordEvaluatorRecovered counts an evaluation that fell back to an empty result.
func RecordEvaluatorRecovered() {
	globalManager.evaluatorRecovered.Inc()
}

// RecordRunScore observes a graded run score.
func RecordRunScore(score float64) {
	globalManager.runScore.Observe(score)
}

// RecordRemoteEventMerged counts a translated remote event; mapped=false marks a pass-through.
func RecordRemoteEventMerged(mapped bool) {
	globalManager.remoteEventsMerged.Inc()
	if !mapped {
		globalManager.unmappedEvents.Inc()
	}
}

// RecordSessionEvent counts an accepted session event.
func RecordSessionEvent() {
	globalManager.sessionEvents.Inc()
}

// RecordSessionEventDuplicate counts a redelivered session event.
func RecordSessionEventDuplicate() {
	globalManager.sessionEventsDup.Inc()
}

// RecordRunSubmitted counts a run accepted for grading.
func RecordRunSubmitted() {
	globalManager.runsSubmitted.Inc()
}

// RecordRunDuplicate counts a duplicate run submission.
func RecordRunDuplicate() {
	globalManager.runsDuplicate.Inc()
}

// RecordRunGraded counts a graded and stored run.
func RecordRunGraded() {
	globalManager.runsGraded.Inc()
}

// RecordRunFailed counts a run that failed with reason.
func RecordRunFailed(reason string) {
	globalManager.runsFailed.WithLabelValues(reason).Inc()
}

// UpdateCatalogCases sets the number of loaded scenarios.
func UpdateCatalogCases(n int) {
	globalManager.catalogCases.Set(float64(n))
}

// RecordCatalogRejected counts a rejected scenario document.
func RecordCatalogRejected() {
	globalManager.catalogRejected.Inc()
}

// RecordCatalogLintWarnings adds n lint warnings.
func RecordCatalogLintWarnings(n int) {
	globalManager.catalogLintWarnings.Add(float64(n))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateRepositoryRecordsTotal sets the number of stored runs.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecords.Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
