package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/cli/output"
	"github.com/driftfs/driftfs/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective DriftFS configuration: file values merged with
environment overrides and defaults.

Examples:
  # Show effective config as YAML
  driftfs config show

  # Show as JSON
  driftfs config show --output json

  # Show a specific config file
  driftfs config show --config /etc/driftfs/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Config path comes from the root command's persistent flag.
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
