package main

import (
	"github.com/spf13/cobra"
)

func newOnceCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single ETL cycle and print its report as one JSON line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, cycleErr := a.scheduler.RunCycle(cmd.Context())
			if err := writeJSONLine(cmd.OutOrStdout(), report); err != nil {
				return withCode(exitDB, err)
			}
			return withCode(cycleExitCode(cycleErr), cycleErr)
		},
	}
}
