package audit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hostops/credbroker/pkg/secretstore"
)

var (
	storeOpsTotal   *prometheus.CounterVec
	rotationsTotal  *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
	sessionsRevoked prometheus.Counter

	metricsOnce sync.Once
)

// InitMetrics registers all Prometheus metrics. Safe to call more than
// once; registration happens on the first call only.
func InitMetrics() {
	metricsOnce.Do(func() {
		storeOpsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbroker_store_operations_total",
				Help: "Total secret store operations by backend, op and outcome",
			},
			[]string{"store", "op", "outcome"},
		)

		rotationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbroker_rotations_total",
				Help: "Total rotation attempts by outcome",
			},
			[]string{"outcome"},
		)

		sessionsIssued = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credbroker_sessions_issued_total",
				Help: "Total sessions issued",
			},
		)

		sessionsRevoked = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credbroker_sessions_revoked_total",
				Help: "Total sessions revoked by rotation",
			},
		)
	})
}

// MetricsSink counts store operations. InitMetrics must have been called
// before the first Record.
type MetricsSink struct{}

// NewMetricsSink creates a metrics-backed audit sink.
func NewMetricsSink() *MetricsSink {
	InitMetrics()
	return &MetricsSink{}
}

// Record implements secretstore.AuditSink.
func (s *MetricsSink) Record(event secretstore.AuditEvent) {
	storeOpsTotal.WithLabelValues(event.Store, event.Op, event.Outcome).Inc()
}

// RecordRotation counts a rotation attempt. Outcome is one of
// "success", "partial", "failed", "rejected".
func RecordRotation(outcome string) {
	if rotationsTotal != nil {
		rotationsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordSessionIssued counts an issued session.
func RecordSessionIssued() {
	if sessionsIssued != nil {
		sessionsIssued.Inc()
	}
}

// RecordSessionsRevoked counts sessions revoked by a rotation.
func RecordSessionsRevoked(n int) {
	if sessionsRevoked != nil {
		sessionsRevoked.Add(float64(n))
	}
}
