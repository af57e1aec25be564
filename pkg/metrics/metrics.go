package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all reconciliation-service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// Storage metrics
	StorageOperations        *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Ledger metrics
	LedgerMutations        *prometheus.CounterVec
	LedgerApplyDuration    *prometheus.HistogramVec
	LedgerVersionConflicts *prometheus.CounterVec
	InvariantViolations    *prometheus.CounterVec
	UnitsPicked            *prometheus.CounterVec
	UnitsReviewed          *prometheus.CounterVec

	// Temporal activity metrics
	ActivitiesCompleted *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec

	// Outbox metrics
	OutboxPublished *prometheus.CounterVec

	// Idempotency metrics
	IdempotencyRequests *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}
	ns := config.Namespace

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "kafka_events_published_total",
			Help:      "Total number of Kafka events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "kafka_events_consumed_total",
			Help:      "Total number of Kafka events consumed",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "storage_operations_total",
			Help:      "Total number of ledger storage operations",
		},
		[]string{"service", "backend", "operation", "status"},
	)

	m.StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "storage_operation_duration_seconds",
			Help:      "Ledger storage operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "backend", "operation"},
	)

	m.LedgerMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconciliation_mutations_total",
			Help:      "Ledger apply calls by mutation kind and outcome",
		},
		[]string{"service", "mutation", "outcome"},
	)

	m.LedgerApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "reconciliation_apply_duration_seconds",
			Help:      "Time spent in a single ledger apply, including retries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "mutation"},
	)

	m.LedgerVersionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconciliation_version_conflicts_total",
			Help:      "Optimistic version conflicts observed while saving a bucket",
		},
		[]string{"service", "mutation"},
	)

	m.InvariantViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconciliation_invariant_violations_total",
			Help:      "Mutations rejected by the invariant checker",
		},
		[]string{"service", "invariant"},
	)

	m.UnitsPicked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconciliation_units_picked_total",
			Help:      "Units recorded by accepted pick submissions",
		},
		[]string{"service", "kind"},
	)

	m.UnitsReviewed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconciliation_units_reviewed_total",
			Help:      "Units given a QC verdict",
		},
		[]string{"service", "verdict"},
	)

	m.ActivitiesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "temporal_activities_completed_total",
			Help:      "Total number of Temporal activities completed",
		},
		[]string{"service", "activity_type", "status"},
	)

	m.ActivityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "temporal_activity_duration_seconds",
			Help:      "Temporal activity duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"service", "activity_type"},
	)

	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "outbox_events_published_total",
			Help:      "Outbox events relayed to Kafka",
		},
		[]string{"service", "status"},
	)

	m.IdempotencyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "idempotency_requests_total",
			Help:      "Requests carrying an Idempotency-Key, by outcome",
		},
		[]string{"service", "path", "outcome"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.StorageOperations,
		m.StorageOperationDuration,
		m.LedgerMutations,
		m.LedgerApplyDuration,
		m.LedgerVersionConflicts,
		m.InvariantViolations,
		m.UnitsPicked,
		m.UnitsReviewed,
		m.ActivitiesCompleted,
		m.ActivityDuration,
		m.OutboxPublished,
		m.IdempotencyRequests,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordStorageOperation records one round trip to the configured ledger backend
func (m *Metrics) RecordStorageOperation(backend, operation string, success bool, duration time.Duration) {
	m.StorageOperations.WithLabelValues(m.serviceName, backend, operation, statusLabel(success)).Inc()
	m.StorageOperationDuration.WithLabelValues(m.serviceName, backend, operation).Observe(duration.Seconds())
}

// RecordLedgerMutation records the outcome of a ledger apply.
// outcome is one of committed, rejected, invariant_violation, conflict, error.
func (m *Metrics) RecordLedgerMutation(mutation, outcome string, duration time.Duration) {
	m.LedgerMutations.WithLabelValues(m.serviceName, mutation, outcome).Inc()
	m.LedgerApplyDuration.WithLabelValues(m.serviceName, mutation).Observe(duration.Seconds())
}

// RecordVersionConflict records an optimistic concurrency retry
func (m *Metrics) RecordVersionConflict(mutation string) {
	m.LedgerVersionConflicts.WithLabelValues(m.serviceName, mutation).Inc()
}

// RecordInvariantViolation records a mutation rejected by the invariant checker
func (m *Metrics) RecordInvariantViolation(invariant string) {
	m.InvariantViolations.WithLabelValues(m.serviceName, invariant).Inc()
}

// RecordPick records units picked, split into fresh and replacement units
func (m *Metrics) RecordPick(fresh, replacement int) {
	if fresh > 0 {
		m.UnitsPicked.WithLabelValues(m.serviceName, "fresh").Add(float64(fresh))
	}
	if replacement > 0 {
		m.UnitsPicked.WithLabelValues(m.serviceName, "replacement").Add(float64(replacement))
	}
}

// RecordQCVerdict records approved and rejected units
func (m *Metrics) RecordQCVerdict(approved, rejected int) {
	if approved > 0 {
		m.UnitsReviewed.WithLabelValues(m.serviceName, "approved").Add(float64(approved))
	}
	if rejected > 0 {
		m.UnitsReviewed.WithLabelValues(m.serviceName, "rejected").Add(float64(rejected))
	}
}

// RecordActivityCompleted records an activity completion
func (m *Metrics) RecordActivityCompleted(activityType string, success bool, duration time.Duration) {
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, statusLabel(success)).Inc()
	m.ActivityDuration.WithLabelValues(m.serviceName, activityType).Observe(duration.Seconds())
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(success bool) {
	m.OutboxPublished.WithLabelValues(m.serviceName, statusLabel(success)).Inc()
}

// RecordIdempotency records how an Idempotency-Key request was resolved
// (hit, miss, mismatch, concurrent, storage_error)
func (m *Metrics) RecordIdempotency(path, outcome string) {
	m.IdempotencyRequests.WithLabelValues(m.serviceName, path, outcome).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
