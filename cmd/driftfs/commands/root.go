// Package commands implements the driftfs CLI.
package commands

import (
	"github.com/spf13/cobra"

	configcmd "github.com/driftfs/driftfs/cmd/driftfs/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "driftfs",
	Short: "DriftFS - Database-backed FUSE filesystem",
	Long: `DriftFS is a userspace filesystem that keeps every inode, directory
entry and file byte in a single database, so a whole filesystem becomes one
portable artifact. It speaks the FUSE kernel protocol directly and can sync
the artifact to S3-compatible object storage.

Use "driftfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/driftfs/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(umountCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configcmd.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
