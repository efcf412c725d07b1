// Package config loads DriftFS configuration from file, environment and
// defaults.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DRIFTFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/driftfs/driftfs/internal/bytesize"
)

// Config is the static DriftFS configuration: logging, telemetry, the
// metadata database, mount behavior, hooks and the remote sync target.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful unmount
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the metadata store (SQLite or PostgreSQL)
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the loopback control API configuration
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Mount contains FUSE mount and dispatch configuration
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// Hooks contains the write-hook engine configuration
	Hooks HooksConfig `mapstructure:"hooks" yaml:"hooks"`

	// Remote contains the S3 sync target for push/pull
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing. When enabled,
// trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics endpoint. When Enabled is
// false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// APIConfig configures the loopback control API.
type APIConfig struct {
	// Enabled controls whether the control API is served
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port, bound to 127.0.0.1
	// Default: 8422
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// DatabaseConfig configures the metadata store backend.
type DatabaseConfig struct {
	// Type selects the backend
	// Valid values: sqlite, postgres
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres" yaml:"type"`

	// SQLite contains SQLite-specific settings
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`

	// Postgres contains PostgreSQL-specific settings
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the database file path
	// Default: $XDG_DATA_HOME/driftfs/metadata.db
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig contains PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// SSLMode is one of disable, require, verify-ca, verify-full
	SSLMode string `mapstructure:"ssl_mode" yaml:"ssl_mode"`

	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// MountConfig contains FUSE mount and dispatch configuration.
type MountConfig struct {
	// ACL restricts which uids may talk to the mount
	// Valid values: unrestricted, owner, root-and-owner
	ACL string `mapstructure:"acl" validate:"required,oneof=unrestricted owner root-and-owner" yaml:"acl"`

	// Engine selects the dispatch model
	// Valid values: serial, parallel
	Engine string `mapstructure:"engine" validate:"required,oneof=serial parallel" yaml:"engine"`

	// AllowOther passes allow_other to the kernel so other users can access
	// the mount (requires ACL to permit them too)
	AllowOther bool `mapstructure:"allow_other" yaml:"allow_other"`

	// DefaultPermissions makes the kernel enforce mode bits itself
	DefaultPermissions bool `mapstructure:"default_permissions" yaml:"default_permissions"`

	// ReadOnly mounts the filesystem read-only
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// DirectMount uses mount(2) directly instead of fusermount
	DirectMount bool `mapstructure:"direct_mount" yaml:"direct_mount"`

	// MaxWrite is the largest write the kernel may send
	// Supports human-readable formats: "1MB", "256Ki"
	// Default: 1MB
	MaxWrite bytesize.ByteSize `mapstructure:"max_write" yaml:"max_write,omitempty"`

	// MaxReadahead caps kernel readahead
	// Default: 128KB
	MaxReadahead bytesize.ByteSize `mapstructure:"max_readahead" yaml:"max_readahead,omitempty"`
}

// HooksConfig configures the write-hook engine.
type HooksConfig struct {
	// Enabled turns hook evaluation on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// SchemaDir holds <name>.yaml frontmatter schemas
	SchemaDir string `mapstructure:"schema_dir" yaml:"schema_dir,omitempty"`

	// WatchSchemas reloads schemas when the directory changes
	WatchSchemas bool `mapstructure:"watch_schemas" yaml:"watch_schemas"`

	// MaxFileSize is the validator's size ceiling
	// Default: 10MB
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size,omitempty"`

	// WorkflowCommand, when set, is spawned for each event with the event
	// JSON on stdin
	WorkflowCommand string   `mapstructure:"workflow_command" yaml:"workflow_command,omitempty"`
	WorkflowArgs    []string `mapstructure:"workflow_args" yaml:"workflow_args,omitempty"`
}

// RemoteConfig locates the S3 sync target for push/pull.
type RemoteConfig struct {
	// Bucket is the S3 bucket name (required for push/pull)
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// Region is the AWS region
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Prefix namespaces the artifact inside the bucket
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`

	// Endpoint overrides the S3 endpoint (MinIO/localstack)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Static credentials; empty values use the default AWS chain
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			// No file at the default location is fine: defaults cover a
			// local SQLite mount out of the box.
			return Load("")
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML. Permissions are restricted
// because the file may carry database or S3 credentials.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and config file search.
// Environment variables use the DRIFTFS_ prefix with underscores, e.g.
// DRIFTFS_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DRIFTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration values.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// config files can say "1Gi", "500MB" or a plain byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, preferring
// XDG_CONFIG_HOME over ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "driftfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "driftfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
