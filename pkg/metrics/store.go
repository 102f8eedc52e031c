package metrics

import (
	"time"

	"github.com/marmos91/gridstore/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics is the Prometheus implementation of the
// session.StoreMetrics interface.
//
// This implementation collects metrics about document store traffic as
// seen by the session gate:
//   - Operation counts by operation and outcome
//   - Operation latency
//   - Time spent queued behind the pool and throttle
type storeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	queueWait         prometheus.Histogram
}

// NewStoreMetrics creates a new Prometheus-backed session.StoreMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called),
// which causes the session to use its built-in no-op implementation.
func NewStoreMetrics() session.StoreMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &storeMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridstore_store_operations_total",
				Help: "Total number of document store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gridstore_store_operation_duration_seconds",
				Help: "Duration of document store operations in seconds",
				Buckets: []float64{
					0.0005, // 0.5ms
					0.001,  // 1ms
					0.0025, // 2.5ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.25,   // 250ms
					0.5,    // 500ms
					1.0,    // 1s
					2.5,    // 2.5s
					5.0,    // 5s
				},
			},
			[]string{"operation"},
		),
		queueWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "gridstore_store_queue_wait_seconds",
				Help: "Time store operations spent waiting for pool and throttle admission",
				Buckets: []float64{
					0.0001, // 0.1ms
					0.0005, // 0.5ms
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
		),
	}
}

// ObserveOperation implements session.StoreMetrics.ObserveOperation
func (m *storeMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveQueueWait implements session.StoreMetrics.ObserveQueueWait
func (m *storeMetrics) ObserveQueueWait(wait time.Duration) {
	m.queueWait.Observe(wait.Seconds())
}
