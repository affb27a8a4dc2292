package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oakwood-commons/kqlrun/internal/config"
)

// schemaCmd prints the embedded configuration schema so users can validate
// or extend their config files with external tooling.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for the run configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write(config.Schema())
		return err
	},
}
