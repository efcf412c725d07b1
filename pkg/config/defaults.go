package config

import (
	"time"

	"github.com/driftfs/driftfs/internal/bytesize"
	"github.com/driftfs/driftfs/pkg/metadata/gormstore"
)

// Default ports.
const (
	DefaultMetricsPort = 9090
	DefaultAPIPort     = 8422
)

// ApplyDefaults fills in missing configuration with default values. It is
// idempotent and never overwrites values the user set.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.Profiling.Endpoint == "" {
		cfg.Telemetry.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		cfg.Telemetry.Profiling.ProfileTypes = []string{
			"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines",
		}
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = string(gormstore.DatabaseTypeSQLite)
	}
	if cfg.Database.Type == string(gormstore.DatabaseTypePostgres) {
		if cfg.Database.Postgres.Port == 0 {
			cfg.Database.Postgres.Port = 5432
		}
		if cfg.Database.Postgres.SSLMode == "" {
			cfg.Database.Postgres.SSLMode = "disable"
		}
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = DefaultAPIPort
	}

	if cfg.Mount.ACL == "" {
		cfg.Mount.ACL = "owner"
	}
	if cfg.Mount.Engine == "" {
		cfg.Mount.Engine = "serial"
	}
	if cfg.Mount.MaxWrite == 0 {
		cfg.Mount.MaxWrite = bytesize.ByteSize(1 << 20)
	}
	if cfg.Mount.MaxReadahead == 0 {
		cfg.Mount.MaxReadahead = bytesize.ByteSize(128 << 10)
	}

	if cfg.Hooks.MaxFileSize == 0 {
		cfg.Hooks.MaxFileSize = bytesize.ByteSize(10 << 20)
	}
}

// GetDefaultConfig returns the full default configuration: a local SQLite
// mount, owner-only ACL, serial dispatch, everything optional disabled.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// StoreConfig converts the database section into the gormstore form.
func (c *DatabaseConfig) StoreConfig() *gormstore.Config {
	storeCfg := &gormstore.Config{
		Type:   gormstore.DatabaseType(c.Type),
		SQLite: gormstore.SQLiteConfig{Path: c.SQLite.Path},
		Postgres: gormstore.PostgresConfig{
			Host:         c.Postgres.Host,
			Port:         c.Postgres.Port,
			Database:     c.Postgres.Database,
			User:         c.Postgres.User,
			Password:     c.Postgres.Password,
			SSLMode:      c.Postgres.SSLMode,
			MaxOpenConns: c.Postgres.MaxOpenConns,
			MaxIdleConns: c.Postgres.MaxIdleConns,
		},
	}
	storeCfg.ApplyDefaults()
	return storeCfg
}
