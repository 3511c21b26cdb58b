package main

import (
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/json"
	"github.com/ajitpratap0/colreplace/pkg/replace"
)

func (a *app) migrateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "migrate-params FILE",
		Short: "Upgrade a replace parameters file to the current version",
		Long: `Read replace parameters of any version and print them in the current
form as JSON, or write them as YAML with --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw map[string]interface{}
			if err := config.Load(args[0], &raw); err != nil {
				return err
			}
			migrated := replace.MigrateParams(raw)

			// Reject parameters the current version cannot decode.
			if _, err := replace.DecodeParams(migrated); err != nil {
				return err
			}

			if output != "" {
				return config.Save(output, migrated)
			}
			return json.EncodeIndent(cmd.OutOrStdout(), migrated)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write YAML to this file instead of JSON to stdout")
	return cmd
}
