package session

import "time"

// StoreMetrics provides observability for document store operations
// passing through the session gate.
//
// Implementations can use this interface to collect metrics about
// operation counts, latency, and time spent queued behind the pool and
// throttle. This is optional - if not provided, metrics collection is
// skipped.
//
// Example implementations:
//   - Prometheus metrics
//   - StatsD metrics
//   - In-memory counters for testing
type StoreMetrics interface {
	// ObserveOperation records one store operation with its duration
	// and outcome. operation is one of "insert", "find", "remove",
	// "count".
	ObserveOperation(operation string, duration time.Duration, err error)

	// ObserveQueueWait records time an operation spent waiting for
	// throttle and pool admission before reaching the store.
	ObserveQueueWait(wait time.Duration)
}

// noopStoreMetrics is a default no-op metrics implementation.
type noopStoreMetrics struct{}

func (noopStoreMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopStoreMetrics) ObserveQueueWait(wait time.Duration)                                  {}
