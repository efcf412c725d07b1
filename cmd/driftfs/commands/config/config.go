// Package config implements the config subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent config command.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Inspect the DriftFS configuration and generate its JSON schema.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
}
