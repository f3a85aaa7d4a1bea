// Package metrics provides Prometheus metrics for the fightlens analyzer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default buckets for pass and request durations, in milliseconds.
var defaultDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // static bucket table

// Manager manages all Prometheus metrics for the analyzer.
type Manager struct {
	namespace   string
	subsystem   string
	buckets     []float64
	enabled     bool
	constLabels map[string]string
	registry    prometheus.Registerer

	// Analysis pass
	encountersAnalyzed prometheus.Counter
	encountersFlagged  prometheus.Counter
	encountersSkipped  prometheus.Counter

	// Faction clustering pass
	clustersCreated     prometheus.Counter
	clustersMerged      prometheus.Counter
	encountersClustered prometheus.Counter
	encountersDeferred  prometheus.Counter
	encountersExhausted prometheus.Counter

	// Pass lifecycle
	passDuration   *prometheus.HistogramVec
	passFailures   *prometheus.CounterVec
	lastPassUnix   *prometheus.GaugeVec
	pendingBacklog *prometheus.GaugeVec

	// Collaborators
	storeErrors    *prometheus.CounterVec
	alertDelivered *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry *prometheus.Registry //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure rebuilds the global manager on a fresh registry. It must run at
// startup before any pass or HTTP handler records a metric.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "fightlens",
		subsystem:   "analyzer",
		buckets:     defaultDurationBuckets,
		enabled:     true,
		constLabels: make(map[string]string),
		registry:    prometheus.DefaultRegisterer,
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

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.encountersAnalyzed = m.counter("encounters_analyzed_total",
		"Total number of encounters that received an analysis summary")
	m.encountersFlagged = m.counter("encounters_flagged_total",
		"Total number of analyzed encounters that raised a flag alert")
	m.encountersSkipped = m.counter("encounters_skipped_total",
		"Total number of encounters below the minimum event count (empty summary written)")

	m.clustersCreated = m.counter("clusters_created_total",
		"Total number of faction clusters created")
	m.clustersMerged = m.counter("clusters_merged_total",
		"Total number of runs merged into an existing faction cluster")
	m.encountersClustered = m.counter("encounters_clustered_total",
		"Total number of encounters attached to a faction cluster")
	m.encountersDeferred = m.counter("encounters_deferred_total",
		"Total number of encounters whose assignment attempt count was incremented")
	m.encountersExhausted = m.counter("encounters_exhausted_total",
		"Total number of encounters that reached the assignment attempt cap")

	m.passDuration = m.histogramVec("pass_duration_milliseconds",
		"Duration of a scheduled pass in milliseconds", "task")
	m.passFailures = m.counterVec("pass_failures_total",
		"Total number of scheduled passes that returned an error", "task")
	m.lastPassUnix = m.gaugeVec("last_pass_unixtime",
		"Unix time of the last successful pass", "task")
	m.pendingBacklog = m.gaugeVec("pending_encounters",
		"Number of encounters picked up by the last pass", "task")

	m.storeErrors = m.counterVec("store_errors_total",
		"Total number of storage errors by operation", "operation")
	m.alertDelivered = m.counterVec("alert_deliveries_total",
		"Alert deliveries by event type and outcome", "event_type", "outcome")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
}

// RecordEncountersAnalyzed adds n analyzed encounters.
func RecordEncountersAnalyzed(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.encountersAnalyzed.Add(float64(n))
}

// RecordEncounterFlagged increments the flagged encounters counter.
func RecordEncounterFlagged() {
	if !globalManager.enabled {
		return
	}
	globalManager.encountersFlagged.Inc()
}

// RecordEncountersSkipped adds n encounters that got an empty summary.
func RecordEncountersSkipped(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.encountersSkipped.Add(float64(n))
}

// ClusterPass holds the counters of one faction clustering pass.
type ClusterPass struct {
	Created   int
	Merged    int
	Clustered int
	Deferred  int
	Exhausted int
}

// RecordClusterPass records the outcome of a faction clustering pass.
func RecordClusterPass(p ClusterPass) {
	if !globalManager.enabled {
		return
	}
	globalManager.clustersCreated.Add(float64(p.Created))
	globalManager.clustersMerged.Add(float64(p.Merged))
	globalManager.encountersClustered.Add(float64(p.Clustered))
	globalManager.encountersDeferred.Add(float64(p.Deferred))
	globalManager.encountersExhausted.Add(float64(p.Exhausted))
}

// RecordPass records a finished pass for a task.
func RecordPass(task string, took time.Duration, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.passDuration.WithLabelValues(task).Observe(float64(took.Milliseconds()))
	if err != nil {
		globalManager.passFailures.WithLabelValues(task).Inc()
		return
	}
	globalManager.lastPassUnix.WithLabelValues(task).Set(float64(time.Now().Unix()))
}

// UpdatePending sets how many encounters the last pass of a task picked up.
func UpdatePending(task string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.pendingBacklog.WithLabelValues(task).Set(float64(n))
}

// RecordStoreError increments the storage error counter for an operation.
func RecordStoreError(operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// RecordAlert records an alert delivery outcome (sent, failed, disabled).
func RecordAlert(eventType, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.alertDelivered.WithLabelValues(eventType, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
