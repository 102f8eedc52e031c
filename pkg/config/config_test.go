package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/gridstore/pkg/grid"
)

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config
	configContent := `
logging:
  level: "INFO"

store:
  type: "memory"

grids:
  - namespace: "fs"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected default format 'console', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
	if cfg.Grids[0].ChunkSize != grid.DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", grid.DefaultChunkSize, cfg.Grids[0].ChunkSize)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Use a temporary directory with a non-existent config file path
	// This ensures we don't load the user's config from ~/.config/gridstore/
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	// Verify defaults
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Expected default store type 'memory', got %q", cfg.Store.Type)
	}
	if len(cfg.Grids) != 1 || cfg.Grids[0].Namespace != grid.DefaultNamespace {
		t.Errorf("Expected single default grid namespace, got %+v", cfg.Grids)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	// Write invalid YAML
	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Should return error
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[store]
type = "memory"

[[grids]]
namespace = "media"
chunk_size = 1048576
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Grids[0].Namespace != "media" {
		t.Errorf("Expected namespace 'media', got %q", cfg.Grids[0].Namespace)
	}
	if cfg.Grids[0].ChunkSize != 1048576 {
		t.Errorf("Expected chunk size 1048576, got %d", cfg.Grids[0].ChunkSize)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	// Verify all defaults are set
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected default log format 'console', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Expected default store type 'memory', got %q", cfg.Store.Type)
	}
	if len(cfg.Grids) != 1 {
		t.Errorf("Expected 1 default grid, got %d", len(cfg.Grids))
	}
	if cfg.Grids[0].Namespace != grid.DefaultNamespace {
		t.Errorf("Expected default namespace %q, got %q", grid.DefaultNamespace, cfg.Grids[0].Namespace)
	}
	if cfg.Grids[0].ContentType != grid.DefaultContentType {
		t.Errorf("Expected default content type %q, got %q", grid.DefaultContentType, cfg.Grids[0].ContentType)
	}
	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default GC interval 24h, got %v", cfg.GC.Interval)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	// Should be an absolute path ending in config.yaml
	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	// Should contain gridstore
	if filepath.Base(dir) != "gridstore" {
		t.Errorf("Expected directory name 'gridstore', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// Set environment variables
	_ = os.Setenv("GRIDSTORE_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("GRIDSTORE_SESSION_POOL_SIZE", "16")
	defer func() {
		_ = os.Unsetenv("GRIDSTORE_LOGGING_LEVEL")
		_ = os.Unsetenv("GRIDSTORE_SESSION_POOL_SIZE")
	}()

	// Create minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

store:
  type: "memory"

session:
  pool_size: 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Session.PoolSize != 16 {
		t.Errorf("Expected pool size 16 from env var, got %d", cfg.Session.PoolSize)
	}
}
