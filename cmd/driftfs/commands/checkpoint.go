package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/pkg/metadata/gormstore"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Checkpoint the SQLite write-ahead log",
	Long: `Flush the SQLite write-ahead log into the main database file and
truncate it, leaving a single-file artifact ready to copy or push.`,
	RunE: runCheckpoint,
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := gormstore.Open(cfg.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	path, ok := store.SQLitePath()
	if !ok {
		return fmt.Errorf("checkpoint requires the sqlite backend")
	}

	if err := store.CheckpointWAL(cmd.Context()); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	fmt.Printf("Checkpointed %s\n", path)
	return nil
}
