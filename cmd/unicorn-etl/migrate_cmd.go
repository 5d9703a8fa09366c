package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/unicorn-warehouse/pkg/database"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|status]",
		Short: "Apply or inspect the warehouse schema migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			switch command {
			case "up", "status":
			default:
				return withCode(exitUsage, fmt.Errorf("unsupported migrate command %q (expected up|status)", command))
			}

			conf, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer conf.Unload()

			if err := database.Migrate(cmd.Context(), conf.Database, command); err != nil {
				return withCode(exitDB, err)
			}
			return nil
		},
	}
}
