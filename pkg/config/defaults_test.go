package config

import (
	"testing"
	"time"

	"github.com/marmos91/gridstore/pkg/grid"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected default log format 'console', got %q", cfg.Logging.Format)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
}

func TestApplyDefaults_Store(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Type != "memory" {
		t.Errorf("Expected default store type 'memory', got %q", cfg.Store.Type)
	}

	// Check memory map initialized
	if cfg.Store.Memory == nil {
		t.Fatal("Expected Memory map to be initialized")
	}

	// Check badger defaults
	if cfg.Store.Badger == nil {
		t.Fatal("Expected Badger map to be initialized")
	}
	if path, ok := cfg.Store.Badger["db_path"]; !ok || path != "/tmp/gridstore-data" {
		t.Errorf("Expected default badger db_path '/tmp/gridstore-data', got %v", path)
	}
}

func TestApplyDefaults_Session(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Session.Nodes == nil {
		t.Error("Expected Nodes to be initialized")
	}
	if cfg.Session.PoolSize != 0 {
		t.Errorf("Expected default pool size 0 (unlimited), got %d", cfg.Session.PoolSize)
	}
	if cfg.Session.OpsPerSecond != 0 {
		t.Errorf("Expected default ops_per_second 0 (unthrottled), got %d", cfg.Session.OpsPerSecond)
	}
}

func TestApplyDefaults_Grids(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if len(cfg.Grids) != 1 {
		t.Fatalf("Expected 1 default grid, got %d", len(cfg.Grids))
	}

	g := cfg.Grids[0]
	if g.Namespace != grid.DefaultNamespace {
		t.Errorf("Expected default namespace %q, got %q", grid.DefaultNamespace, g.Namespace)
	}
	if g.ChunkSize != grid.DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", grid.DefaultChunkSize, g.ChunkSize)
	}
	if g.ContentType != grid.DefaultContentType {
		t.Errorf("Expected default content type %q, got %q", grid.DefaultContentType, g.ContentType)
	}
}

func TestApplyDefaults_GC(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.GC.Enabled {
		t.Error("Expected GC disabled by default")
	}
	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default GC interval 24h, got %v", cfg.GC.Interval)
	}

	// GC namespaces default to all configured grids
	if len(cfg.GC.Namespaces) != 1 || cfg.GC.Namespaces[0] != grid.DefaultNamespace {
		t.Errorf("Expected GC namespaces [%q], got %v", grid.DefaultNamespace, cfg.GC.Namespaces)
	}
}

func TestApplyDefaults_GCNamespacesFollowGrids(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{Namespace: "media"},
			{Namespace: "logs"},
		},
	}
	ApplyDefaults(cfg)

	if len(cfg.GC.Namespaces) != 2 {
		t.Fatalf("Expected 2 GC namespaces, got %d", len(cfg.GC.Namespaces))
	}
	if cfg.GC.Namespaces[0] != "media" || cfg.GC.Namespaces[1] != "logs" {
		t.Errorf("Expected GC namespaces [media logs], got %v", cfg.GC.Namespaces)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
		},
		Server: ServerConfig{
			ShutdownTimeout: 60 * time.Second,
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    9999,
			},
		},
		Store: StoreConfig{
			Type: "badger",
			Badger: map[string]any{
				"db_path": "/custom/path",
			},
		},
		GC: GCConfig{
			Enabled:    true,
			Interval:   time.Hour,
			Namespaces: []string{"fs"},
		},
	}

	ApplyDefaults(cfg)

	// Verify explicit values were preserved
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Port != 9999 {
		t.Errorf("Expected explicit metrics port 9999 to be preserved, got %d", cfg.Server.Metrics.Port)
	}
	if cfg.Store.Type != "badger" {
		t.Errorf("Expected explicit store type 'badger' to be preserved, got %q", cfg.Store.Type)
	}
	if cfg.Store.Badger["db_path"] != "/custom/path" {
		t.Errorf("Expected explicit db_path to be preserved, got %v", cfg.Store.Badger["db_path"])
	}
	if cfg.GC.Interval != time.Hour {
		t.Errorf("Expected explicit GC interval 1h to be preserved, got %v", cfg.GC.Interval)
	}
}

func TestApplyDefaults_MultipleGridsWithMixedDefaults(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{
				Namespace: "media",
			},
			{
				Namespace:   "thumbnails",
				ChunkSize:   64 * 1024,
				ContentType: "image/png",
			},
		},
	}

	ApplyDefaults(cfg)

	// First grid gets engine defaults
	if cfg.Grids[0].ChunkSize != grid.DefaultChunkSize {
		t.Errorf("Expected default chunk size for first grid, got %d", cfg.Grids[0].ChunkSize)
	}

	// Second grid should preserve explicit values
	if cfg.Grids[1].ChunkSize != 64*1024 {
		t.Errorf("Expected explicit chunk size 65536 for second grid, got %d", cfg.Grids[1].ChunkSize)
	}
	if cfg.Grids[1].ContentType != "image/png" {
		t.Errorf("Expected explicit content type 'image/png' for second grid, got %q", cfg.Grids[1].ContentType)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	// The default config should pass validation
	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	// Check all required sections are present
	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.Store.Type == "" {
		t.Error("Default config missing store type")
	}
	if len(cfg.Grids) == 0 {
		t.Error("Default config has no grids")
	}
	if cfg.Grids[0].Namespace == "" {
		t.Error("Default config grid has no namespace")
	}
}
