package config

import (
	"strings"
	"time"

	"github.com/marmos91/gridstore/pkg/grid"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applySessionDefaults(&cfg.Session)

	// Add default grid if none configured
	if len(cfg.Grids) == 0 {
		cfg.Grids = []GridConfig{
			{
				Namespace: grid.DefaultNamespace,
			},
		}
	}

	applyGridDefaults(cfg.Grids)
	applyGCDefaults(&cfg.GC, cfg.Grids)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "console"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	// Metrics disabled by default; the port default still applies so a
	// generated config file carries a usable value.
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyStoreDefaults sets document store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	// Initialize maps if nil
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/gridstore-data"
	}
}

// applySessionDefaults sets session defaults.
func applySessionDefaults(cfg *SessionConfig) {
	// PoolSize defaults to 0 (unlimited)
	// OpsPerSecond defaults to 0 (unthrottled)
	// Burst defaults to 0 (derived from OpsPerSecond)

	// If Nodes is nil, initialize to empty (single-node store)
	if cfg.Nodes == nil {
		cfg.Nodes = []string{}
	}
}

// applyGridDefaults sets per-namespace grid defaults.
func applyGridDefaults(grids []GridConfig) {
	for i := range grids {
		g := &grids[i]

		if g.Namespace == "" {
			g.Namespace = grid.DefaultNamespace
		}
		if g.ChunkSize == 0 {
			g.ChunkSize = grid.DefaultChunkSize
		}
		if g.ContentType == "" {
			g.ContentType = grid.DefaultContentType
		}
	}
}

// applyGCDefaults sets garbage collection defaults.
func applyGCDefaults(cfg *GCConfig, grids []GridConfig) {
	// Enabled defaults to false

	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}

	// Sweep every configured namespace unless an explicit list was given
	if len(cfg.Namespaces) == 0 {
		namespaces := make([]string, 0, len(grids))
		for _, g := range grids {
			namespaces = append(namespaces, g.Namespace)
		}
		cfg.Namespaces = namespaces
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Server:  ServerConfig{},
		Store: StoreConfig{
			Memory: make(map[string]any),
			Badger: make(map[string]any),
		},
		Session: SessionConfig{},
		Grids: []GridConfig{
			{
				Namespace: grid.DefaultNamespace,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
