package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Request queue metrics
	QueueDepth     *prometheus.GaugeVec
	QueueRequests  *prometheus.CounterVec
	QueueRetries   prometheus.Counter
	RequestLatency prometheus.Histogram
	UpstreamErrors *prometheus.CounterVec

	// Key pool metrics
	KeyPromotions prometheus.Counter
	KeyFailures   prometheus.Counter

	// Migration metrics
	MigratedRecords *prometheus.CounterVec

	// Event stream metrics
	WebSocketConnections prometheus.Gauge
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Pending requests per priority (gauge - can go up and down)
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solace_queue_depth",
			Help: "Number of pending requests in the queue by priority",
		}, []string{"priority"}),

		// Finished requests by outcome
		QueueRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_queue_requests_total",
			Help: "Total number of queued requests by outcome",
		}, []string{"outcome"}), // outcome: "completed", "failed", "cancelled"

		QueueRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solace_queue_retries_total",
			Help: "Total number of request retry attempts",
		}),

		// Request latency histogram
		RequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "solace_request_duration_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // up to 2 minutes for LLM responses
		}),

		// Upstream errors by HTTP status
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_upstream_errors_total",
			Help: "Total number of upstream errors by status code",
		}, []string{"status"}),

		KeyPromotions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solace_key_promotions_total",
			Help: "Total number of automatic key promotions after a failure",
		}),

		KeyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "solace_key_failures_total",
			Help: "Total number of keys marked failed",
		}),

		MigratedRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_migrated_records_total",
			Help: "Total number of legacy records migrated by domain",
		}, []string{"domain"}),

		// Event stream connections (gauge - can go up and down)
		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "solace_websocket_connections_active",
			Help: "Number of active event stream WebSocket connections",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordQueueDepth records the pending count for one priority level
func (m *Metrics) RecordQueueDepth(priority string, depth int) {
	m.QueueDepth.WithLabelValues(priority).Set(float64(depth))
}

// RecordRequestOutcome records a finished request
func (m *Metrics) RecordRequestOutcome(outcome string) {
	m.QueueRequests.WithLabelValues(outcome).Inc()
}

// RecordRetry records a retry attempt
func (m *Metrics) RecordRetry() {
	m.QueueRetries.Inc()
}

// RecordRequestLatency records upstream request latency
func (m *Metrics) RecordRequestLatency(seconds float64) {
	m.RequestLatency.Observe(seconds)
}

// RecordUpstreamError records an upstream error by status code
func (m *Metrics) RecordUpstreamError(status string) {
	m.UpstreamErrors.WithLabelValues(status).Inc()
}

// RecordKeyPromotion records an automatic key promotion
func (m *Metrics) RecordKeyPromotion() {
	m.KeyPromotions.Inc()
}

// RecordKeyFailure records a key marked failed
func (m *Metrics) RecordKeyFailure() {
	m.KeyFailures.Inc()
}

// RecordMigratedRecord records one migrated legacy record
func (m *Metrics) RecordMigratedRecord(domain string) {
	m.MigratedRecords.WithLabelValues(domain).Inc()
}

// RecordWebSocketConnect records a new event stream connection
func (m *Metrics) RecordWebSocketConnect() {
	m.WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records an event stream disconnection
func (m *Metrics) RecordWebSocketDisconnect() {
	m.WebSocketConnections.Dec()
}
