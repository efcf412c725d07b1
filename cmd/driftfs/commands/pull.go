package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/cli/prompt"
	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/remote"
)

var pullForce bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the filesystem artifact from the remote",
	Long: `Download the latest artifact from the configured S3 remote and
install it as the local SQLite database.

The download is verified against the manifest checksum and written
atomically; a partial download never replaces the local file. Overwriting
an existing database asks for confirmation unless --force is given.

Examples:
  driftfs pull
  driftfs pull --force`,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullForce, "force", false, "Overwrite an existing local database without asking")
}

func runPull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Database.Type != "sqlite" {
		return fmt.Errorf("pull requires the sqlite backend; %s databases stay where they are", cfg.Database.Type)
	}
	path := cfg.Database.SQLite.Path

	if _, err := os.Stat(path); err == nil {
		ok, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Overwrite local database at %s", path), pullForce)
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

	syncer, err := newSyncer(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	artifact, manifest, err := syncer.Pull(cmd.Context())
	if err != nil {
		if errors.Is(err, remote.ErrNoManifest) {
			return fmt.Errorf("remote has no artifact yet: push one first")
		}
		return err
	}

	if err := remote.WriteArtifact(path, artifact); err != nil {
		return err
	}

	logger.Info("artifact pulled",
		logger.KeyBucket, cfg.Remote.Bucket,
		logger.KeyGeneration, manifest.Generation,
		logger.KeySize, manifest.Size,
		logger.KeyPath, path)
	fmt.Printf("Pulled %d bytes (generation %s) to %s\n", manifest.Size, manifest.Generation, path)
	return nil
}
