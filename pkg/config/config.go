package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete gridstore configuration.
//
// This structure captures all configurable aspects of a gridstore deployment including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics endpoint)
//   - Document store selection and configuration (store-specific)
//   - Session settings (connection pool, throttling, credentials)
//   - Grid namespace definitions
//   - Garbage collection of orphaned chunks
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (GRIDSTORE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type and factory function.
// The Config struct contains type-specific sections (e.g., store.badger, store.s3)
// and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Store specifies the document store type and type-specific configuration
	Store StoreConfig `mapstructure:"store"`

	// Session contains connection pool and throttling settings
	Session SessionConfig `mapstructure:"session"`

	// Grids defines the namespaces available to clients
	Grids []GridConfig `mapstructure:"grids" validate:"dive"`

	// GC configures garbage collection of orphaned chunks
	GC GCConfig `mapstructure:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: console, json
	Format string `mapstructure:"format" validate:"required,oneof=console json"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics registry and HTTP endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP server port
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// StoreConfig specifies document store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which document store implementation to use
	// Valid values: memory, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// SessionConfig contains connection pool and throttling settings.
type SessionConfig struct {
	// Nodes lists the store endpoints recorded on the session
	// Informational for single-node stores; required by clustered deployments
	Nodes []string `mapstructure:"nodes"`

	// Username for store authentication (optional, requires Password)
	Username string `mapstructure:"username"`

	// Password for store authentication (optional, requires Username)
	Password string `mapstructure:"password"`

	// PoolSize caps concurrent store operations (0 = unlimited)
	PoolSize int `mapstructure:"pool_size" validate:"gte=0"`

	// OpsPerSecond throttles store operations (0 = unthrottled)
	OpsPerSecond uint `mapstructure:"ops_per_second"`

	// Burst is the token bucket burst size (0 = 2x OpsPerSecond)
	Burst uint `mapstructure:"burst"`
}

// GridConfig defines a single grid namespace.
type GridConfig struct {
	// Namespace prefixes the backing collections (e.g., "fs" -> fs.files, fs.chunks)
	Namespace string `mapstructure:"namespace" validate:"required"`

	// ChunkSize is the default chunk size in bytes for new files
	ChunkSize int64 `mapstructure:"chunk_size" validate:"omitempty,gt=0"`

	// ContentType is the default content type for new files
	ContentType string `mapstructure:"content_type"`
}

// GCConfig configures garbage collection of orphaned chunks.
type GCConfig struct {
	// Enabled controls whether the background collector runs
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run garbage collection
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,gt=0"`

	// Namespaces lists the namespaces to sweep
	// Empty means all configured grid namespaces
	Namespaces []string `mapstructure:"namespaces"`

	// DryRun logs what would be deleted without actually deleting
	DryRun bool `mapstructure:"dry_run"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GRIDSTORE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use GRIDSTORE_ prefix and underscores
	// Example: GRIDSTORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("GRIDSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/gridstore/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		// Other errors are problems
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gridstore")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "gridstore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
