// Package metrics provides Prometheus metrics for the stripe-connect service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Stripe API
	stripeCalls        *prometheus.CounterVec
	stripeCallDuration *prometheus.HistogramVec

	// Webhooks
	webhookEvents        *prometheus.CounterVec
	webhookQueueSize     prometheus.Gauge
	webhookQueueCapacity prometheus.Gauge
	webhookWorkers       prometheus.Gauge
	webhookLatency       prometheus.Histogram

	// Storage
	storageOps *prometheus.CounterVec

	// Errors
	errors *prometheus.CounterVec

	// Runtime
	memoryBytes    prometheus.Gauge
	goroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "connect",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_ms",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status"})

	m.stripeCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stripe_calls_total",
		Help:        "Stripe API calls by operation and outcome",
		ConstLabels: m.constLabels,
	}, []string{"operation", "outcome"})

	m.stripeCallDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stripe_call_duration_ms",
		Help:        "Stripe API call latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.webhookEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "webhook_events_total",
		Help:        "Webhook events by type and outcome (accepted, duplicate, processed, ignored, failed)",
		ConstLabels: m.constLabels,
	}, []string{"type", "outcome"})

	m.webhookQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "webhook_queue_size",
		Help:        "Webhook events waiting to be dispatched",
		ConstLabels: m.constLabels,
	})

	m.webhookQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "webhook_queue_capacity",
		Help:        "Configured webhook queue capacity",
		ConstLabels: m.constLabels,
	})

	m.webhookWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "webhook_workers",
		Help:        "Running webhook dispatch workers",
		ConstLabels: m.constLabels,
	})

	m.webhookLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "webhook_dispatch_duration_ms",
		Help:        "Time spent dispatching one webhook event",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.storageOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_ops_total",
		Help:        "Key-value storage operations by op and outcome",
		ConstLabels: m.constLabels,
	}, []string{"op", "outcome"})

	m.errors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and kind",
		ConstLabels: m.constLabels,
	}, []string{"component", "kind"})

	m.memoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "memory_alloc_bytes",
		Help:        "Heap bytes allocated",
		ConstLabels: m.constLabels,
	})

	m.goroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "goroutines",
		Help:        "Live goroutines",
		ConstLabels: m.constLabels,
	})
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// RecordStripeCall records the outcome ("ok" or "error") and latency of a Stripe API call.
func RecordStripeCall(operation, outcome string, durationMs float64) {
	globalManager.stripeCalls.WithLabelValues(operation, outcome).Inc()
	globalManager.stripeCallDuration.WithLabelValues(operation).Observe(durationMs)
}

// RecordWebhookEvent counts a webhook event outcome.
func RecordWebhookEvent(eventType, outcome string) {
	globalManager.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// RecordWebhookDispatch records dispatch latency.
func RecordWebhookDispatch(durationMs float64) {
	globalManager.webhookLatency.Observe(durationMs)
}

// UpdateWebhookQueueSize sets the current backlog.
func UpdateWebhookQueueSize(size int) {
	globalManager.webhookQueueSize.Set(float64(size))
}

// UpdateWebhookQueueCapacity sets the configured capacity.
func UpdateWebhookQueueCapacity(capacity int) {
	globalManager.webhookQueueCapacity.Set(float64(capacity))
}

// UpdateWebhookWorkers sets the running worker count.
func UpdateWebhookWorkers(count int) {
	globalManager.webhookWorkers.Set(float64(count))
}

// RecordStorageOp counts a storage operation.
func RecordStorageOp(op, outcome string) {
	globalManager.storageOps.WithLabelValues(op, outcome).Inc()
}

// RecordError counts an error by component and kind.
func RecordError(component, kind string) {
	globalManager.errors.WithLabelValues(component, kind).Inc()
}

// UpdateRuntime sets runtime gauges.
func UpdateRuntime(allocBytes uint64, goroutines int) {
	globalManager.memoryBytes.Set(float64(allocBytes))
	globalManager.goroutineCount.Set(float64(goroutines))
}

// GetRegistry returns the private registry served at /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
