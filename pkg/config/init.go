package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitConfig creates a default configuration file at the default location.
//
// The generated file carries every section with its default values plus
// explanatory comments, so a fresh deployment can be edited into shape
// instead of written from scratch.
//
// Parameters:
//   - force: Overwrite an existing config file
//
// Returns:
//   - string: Path the config file was written to
//   - error: Returns error if the file exists (without force) or cannot be written
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a default configuration file at the given path.
//
// Parent directories are created as needed.
//
// Parameters:
//   - path: Destination file path
//   - force: Overwrite an existing file
//
// Returns:
//   - error: Returns error if the file exists (without force) or cannot be written
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as a commented YAML document.
//
// The template is assembled by hand rather than marshalled so every key
// matches the mapstructure tags Load expects and each section keeps its
// explanatory comment.
func generateYAMLWithComments(cfg *Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("config is nil")
	}
	if len(cfg.Grids) == 0 {
		return "", fmt.Errorf("config has no grid namespaces")
	}

	var b strings.Builder

	b.WriteString("# Gridstore Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Values can be overridden with GRIDSTORE_* environment variables,\n")
	b.WriteString("# e.g. GRIDSTORE_LOGGING_LEVEL=DEBUG.\n\n")

	b.WriteString("# Log output behavior.\n")
	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  # Minimum level: DEBUG, INFO, WARN, ERROR\n")
	fmt.Fprintf(&b, "  level: %q\n", cfg.Logging.Level)
	fmt.Fprintf(&b, "  # Output format: console, json\n")
	fmt.Fprintf(&b, "  format: %q\n\n", cfg.Logging.Format)

	b.WriteString("# Server-wide settings.\n")
	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  shutdown_timeout: %s\n", cfg.Server.ShutdownTimeout)
	b.WriteString("  # Prometheus metrics endpoint.\n")
	b.WriteString("  metrics:\n")
	fmt.Fprintf(&b, "    enabled: %v\n", cfg.Server.Metrics.Enabled)
	fmt.Fprintf(&b, "    port: %d\n\n", cfg.Server.Metrics.Port)

	b.WriteString("# Document store backing records and chunks.\n")
	b.WriteString("store:\n")
	fmt.Fprintf(&b, "  # Store type: memory, badger, s3\n")
	fmt.Fprintf(&b, "  type: %q\n", cfg.Store.Type)
	b.WriteString("  badger:\n")
	fmt.Fprintf(&b, "    db_path: %q\n", cfg.Store.Badger["db_path"])
	b.WriteString("  # s3:\n")
	b.WriteString("  #   region: \"us-east-1\"\n")
	b.WriteString("  #   bucket: \"gridstore\"\n")
	b.WriteString("  #   key_prefix: \"\"\n")
	b.WriteString("  #   endpoint: \"\"          # set for MinIO/Localstack\n")
	b.WriteString("  #   access_key_id: \"\"\n")
	b.WriteString("  #   secret_access_key: \"\"\n\n")

	b.WriteString("# Connection pool and throttling.\n")
	b.WriteString("session:\n")
	fmt.Fprintf(&b, "  # Max concurrent store operations (0 = unlimited)\n")
	fmt.Fprintf(&b, "  pool_size: %d\n", cfg.Session.PoolSize)
	fmt.Fprintf(&b, "  # Sustained operation rate (0 = unthrottled)\n")
	fmt.Fprintf(&b, "  ops_per_second: %d\n", cfg.Session.OpsPerSecond)
	b.WriteString("  # nodes:\n")
	b.WriteString("  #   - \"db1.internal:9000\"\n")
	b.WriteString("  # username: \"\"\n")
	b.WriteString("  # password: \"\"\n\n")

	b.WriteString("# Grid namespaces. Each namespace gets its own .files and .chunks\n")
	b.WriteString("# collections and is fully isolated from the others.\n")
	b.WriteString("grids:\n")
	for _, g := range cfg.Grids {
		fmt.Fprintf(&b, "  - namespace: %q\n", g.Namespace)
		fmt.Fprintf(&b, "    chunk_size: %d\n", g.ChunkSize)
		fmt.Fprintf(&b, "    content_type: %q\n", g.ContentType)
	}
	b.WriteString("\n")

	b.WriteString("# Garbage collection of orphaned chunks.\n")
	b.WriteString("gc:\n")
	fmt.Fprintf(&b, "  enabled: %v\n", cfg.GC.Enabled)
	fmt.Fprintf(&b, "  interval: %s\n", cfg.GC.Interval)
	fmt.Fprintf(&b, "  dry_run: %v\n", cfg.GC.DryRun)

	return b.String(), nil
}
