package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/cli/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show filesystem statistics",
	Long: `Show counters for the local metadata store and, when a remote is
configured, the state of the last pushed artifact.

Examples:
  driftfs stats`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	local, err := store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	table := output.NewTableData("", "")
	table.AddRow("Database", cfg.Database.Type)
	table.AddRow("Inodes", fmt.Sprintf("%d", local.Inodes))
	table.AddRow("Directory entries", fmt.Sprintf("%d", local.Dentries))
	table.AddRow("File data", fmt.Sprintf("%d bytes", local.DataBytes))

	if cfg.Remote.Bucket != "" {
		syncer, err := newSyncer(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		sync, err := syncer.Stats(cmd.Context(), store)
		if err != nil {
			return err
		}
		table.AddRow("Remote bucket", cfg.Remote.Bucket)
		if sync.Remote != nil {
			table.AddRow("Remote generation", sync.Remote.Generation)
			table.AddRow("Remote size", fmt.Sprintf("%d bytes", sync.Remote.Size))
			table.AddRow("Remote pushed at", sync.Remote.PushedAt.Local().Format("2006-01-02 15:04:05"))
		} else {
			table.AddRow("Remote generation", "(never pushed)")
		}
	}

	return output.PrintTable(os.Stdout, table)
}
