package config

import (
	"github.com/marmos91/gridstore/pkg/grid"
	"github.com/marmos91/gridstore/pkg/metrics"
	"github.com/marmos91/gridstore/pkg/session"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// GridMetrics is the metrics sink for grid filesystems (nil if disabled;
	// the engine treats nil as "no metrics" with zero overhead)
	GridMetrics grid.Metrics

	// StoreMetrics is the metrics sink for store operations passing
	// through the session gate (nil if disabled)
	StoreMetrics session.StoreMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for the grid engine
//     and the session gate
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns nil metrics sinks (zero overhead)
//
// Parameters:
//   - cfg: The complete gridstore configuration
//
// Returns:
//   - MetricsResult containing all metrics components
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		// Metrics disabled - nothing to expose
		return &MetricsResult{}
	}

	// Initialize global Prometheus registry
	metrics.InitRegistry()

	// Create metrics HTTP server
	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:       server,
		GridMetrics:  metrics.NewGridMetrics(),
		StoreMetrics: metrics.NewStoreMetrics(),
	}
}
