// Package metrics provides Prometheus metrics for the skillboard rating engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Rating pipeline
	sessionsSubmitted   prometheus.Counter
	sessionsDuplicate   prometheus.Counter
	sessionsValidated   *prometheus.CounterVec
	sessionsInvalidated *prometheus.CounterVec
	matchesRated        *prometheus.CounterVec
	historyWritten      *prometheus.CounterVec
	rebuilds            *prometheus.CounterVec
	rejections          *prometheus.CounterVec
	updateDuration      *prometheus.HistogramVec
	ratedPlayers        *prometheus.GaugeVec

	// Job dispatch
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueEnqueueError prometheus.Counter
	workerCount       prometheus.Gauge
	jobsProcessed     *prometheus.CounterVec
	jobLatency        *prometheus.HistogramVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "skillboard",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsSubmitted = m.counter("sessions_submitted_total", "Sessions accepted for validation")
	m.sessionsDuplicate = m.counter("sessions_duplicate_total", "Submissions dropped by the idempotency tracker")
	m.sessionsValidated = m.counterVec("sessions_validated_total", "Sessions validated and rated", "activity")
	m.sessionsInvalidated = m.counterVec("sessions_invalidated_total", "Sessions rejected by a reviewer", "activity")
	m.matchesRated = m.counterVec("matches_rated_total", "Matches pushed through the rating update", "activity")
	m.historyWritten = m.counterVec("history_written_total", "Skill history entries written", "activity")
	m.rebuilds = m.counterVec("rebuilds_total", "Full recomputations by outcome", "activity", "status")
	m.rejections = m.counterVec("rejections_total", "Rejected operations by reason", "reason")
	m.updateDuration = m.histogramVec("update_duration_seconds", "Wall time of rating operations", "operation")
	m.ratedPlayers = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rated_players",
		Help:        "Players holding a stored rating",
		ConstLabels: m.constLabels,
	}, []string{"activity"})

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the dispatch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the dispatch queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs taken by workers")
	m.queueEnqueueError = m.counter("queue_enqueue_errors_total", "Jobs refused because the queue was full or closed")
	m.workerCount = m.gauge("worker_count", "Running job workers")
	m.jobsProcessed = m.counterVec("jobs_processed_total", "Finished jobs by kind and status", "kind", "status")
	m.jobLatency = m.histogramVec("job_latency_seconds", "Time from enqueue to completion", "kind")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_milliseconds",
		Help:        "Average GC pause in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

// Rating pipeline.

// RecordSessionSubmitted increments the submitted sessions counter.
func RecordSessionSubmitted() {
	if globalManager.enabled {
		globalManager.sessionsSubmitted.Inc()
	}
}

// RecordSessionDuplicate increments the duplicate submissions counter.
func RecordSessionDuplicate() {
	if globalManager.enabled {
		globalManager.sessionsDuplicate.Inc()
	}
}

// RecordSessionsValidated adds n validated sessions for activity.
func RecordSessionsValidated(activity string, n int) {
	if globalManager.enabled {
		globalManager.sessionsValidated.WithLabelValues(activity).Add(float64(n))
	}
}

// RecordSessionsInvalidated adds n invalidated sessions for activity.
func RecordSessionsInvalidated(activity string, n int) {
	if globalManager.enabled {
		globalManager.sessionsInvalidated.WithLabelValues(activity).Add(float64(n))
	}
}

// RecordMatchesRated adds n rated matches for activity.
func RecordMatchesRated(activity string, n int) {
	if globalManager.enabled {
		globalManager.matchesRated.WithLabelValues(activity).Add(float64(n))
	}
}

// RecordHistoryWritten adds n history entries for activity.
func RecordHistoryWritten(activity string, n int) {
	if globalManager.enabled {
		globalManager.historyWritten.WithLabelValues(activity).Add(float64(n))
	}
}

// RecordRebuild counts a recomputation with its outcome ("ok" or "error").
func RecordRebuild(activity, status string) {
	if globalManager.enabled {
		globalManager.rebuilds.WithLabelValues(activity, status).Inc()
	}
}

// RecordRejection counts an operation refused for reason.
func RecordRejection(reason string) {
	if globalManager.enabled {
		globalManager.rejections.WithLabelValues(reason).Inc()
	}
}

// RecordUpdateDuration observes how long operation took.
func RecordUpdateDuration(operation string, d time.Duration) {
	if globalManager.enabled {
		globalManager.updateDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// UpdateRatedPlayers sets the number of rated players in activity.
func UpdateRatedPlayers(activity string, n int) {
	if globalManager.enabled {
		globalManager.ratedPlayers.WithLabelValues(activity).Set(float64(n))
	}
}

// Job dispatch.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
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
	globalManager.queueEnqueueError.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordJobProcessed counts a finished job.
func RecordJobProcessed(kind, status string) {
	globalManager.jobsProcessed.WithLabelValues(kind, status).Inc()
}

// RecordJobLatency observes the enqueue-to-done latency of a job.
func RecordJobLatency(kind string, d time.Duration) {
	globalManager.jobLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// Runtime.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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
