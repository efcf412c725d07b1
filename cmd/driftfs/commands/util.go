package commands

import (
	"context"
	"fmt"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/config"
	"github.com/driftfs/driftfs/pkg/metadata/gormstore"
	"github.com/driftfs/driftfs/pkg/remote"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads and validates configuration, then brings the logger up so
// every later step logs in the configured format.
func loadConfig() (*config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore connects to the metadata database and applies pending
// migrations.
func openStore(cfg *config.Config) (*gormstore.GORMStore, error) {
	store, err := gormstore.New(cfg.Database.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return store, nil
}

// newSyncer builds the S3 syncer from the remote section of the config.
func newSyncer(ctx context.Context, cfg *config.Config) (*remote.Syncer, error) {
	if cfg.Remote.Bucket == "" {
		return nil, fmt.Errorf("no remote configured: set remote.bucket in the config file or DRIFTFS_REMOTE_BUCKET")
	}
	return remote.NewSyncer(ctx, remote.Config{
		Bucket:          cfg.Remote.Bucket,
		Region:          cfg.Remote.Region,
		Prefix:          cfg.Remote.Prefix,
		Endpoint:        cfg.Remote.Endpoint,
		AccessKeyID:     cfg.Remote.AccessKeyID,
		SecretAccessKey: cfg.Remote.SecretAccessKey,
	})
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
