// Package metrics provides Prometheus metrics collection for gridstore
// components.
//
// All metrics are optional - if not initialized, components use no-op
// implementations with zero overhead, so the engine runs the same with
// or without collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create the engine collector
//	gridMetrics := metrics.NewGridMetrics()
//
//	// Or pass nil for no-op behavior
//	fs := grid.NewFS(store, grid.FSConfig{Metrics: nil})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all gridstore
	// metrics. Write-once through registryOnce, read-many after.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Call before creating any metrics instances. Safe to call multiple
// times; subsequent calls are ignored. When never called, GetRegistry
// returns nil and the metrics constructors hand back no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when
// metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled, that is,
// whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
