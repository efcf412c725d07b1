package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/cli/output"
	"github.com/driftfs/driftfs/internal/cli/prompt"
	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/metadata/gormstore"
)

var (
	migrateDryRun bool
	migrateYes    bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long: `Apply pending schema migrations to the metadata database.

Mounting applies migrations automatically; this command exists to inspect
and apply them explicitly, for example before upgrading a shared Postgres
deployment.

Examples:
  # List pending migrations without applying them
  driftfs migrate --dry-run

  # Apply with confirmation prompt
  driftfs migrate

  # Apply without prompting
  driftfs migrate --yes`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "List pending migrations without applying them")
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Apply without confirmation")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := gormstore.Open(cfg.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	pending, err := store.PendingMigrations()
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Printf("Database schema is up to date (type: %s)\n", cfg.Database.Type)
		return nil
	}

	table := output.NewTableData("VERSION", "NAME")
	for _, m := range pending {
		table.AddRow(fmt.Sprintf("%06d", m.Version), m.Name)
	}
	fmt.Printf("Pending migrations (%d):\n\n", len(pending))
	if err := output.PrintTable(os.Stdout, table); err != nil {
		return err
	}
	fmt.Println()

	if migrateDryRun {
		return nil
	}

	if !migrateYes {
		ok, err := prompt.Confirm(fmt.Sprintf("Apply %d migration(s) to the %s database", len(pending), cfg.Database.Type), false)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	logger.Info("applying migrations", "count", len(pending), "type", cfg.Database.Type)
	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("Applied %d migration(s) successfully\n", len(pending))
	return nil
}
