package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/metadata/gormstore"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the filesystem artifact to the remote",
	Long: `Push the SQLite database file to the configured S3 remote.

The write-ahead log is checkpointed first so the uploaded file is a
complete, self-contained snapshot. Do not push while the filesystem is
mounted read-write; the artifact could change mid-upload.

Examples:
  driftfs push
  DRIFTFS_REMOTE_BUCKET=my-bucket driftfs push`,
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	syncer, err := newSyncer(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	store, err := gormstore.Open(cfg.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}

	path, ok := store.SQLitePath()
	if !ok {
		_ = store.Close()
		return fmt.Errorf("push requires the sqlite backend; %s databases stay where they are", cfg.Database.Type)
	}

	if err := store.CheckpointWAL(cmd.Context()); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	artifact, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read database file: %w", err)
	}

	manifest, err := syncer.Push(cmd.Context(), artifact)
	if err != nil {
		return err
	}

	logger.Info("artifact pushed",
		logger.KeyBucket, cfg.Remote.Bucket,
		logger.KeyGeneration, manifest.Generation,
		logger.KeySize, manifest.Size)
	fmt.Printf("Pushed %d bytes (generation %s)\n", manifest.Size, manifest.Generation)
	return nil
}
