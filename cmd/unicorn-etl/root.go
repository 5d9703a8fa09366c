package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	envFiles []string
	source   string
	sheet    string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "unicorn-etl",
		Short:         "Load unicorn company snapshots into the star-schema warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load when present")
	cmd.PersistentFlags().StringVar(&opts.source, "source", "", "Snapshot file (.csv or .xlsx); overrides SOURCE_PATH")
	cmd.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "Worksheet of an .xlsx source; overrides SOURCE_SHEET")

	cmd.AddCommand(newRunCmd(&opts))
	cmd.AddCommand(newOnceCmd(&opts))
	cmd.AddCommand(newMigrateCmd(&opts))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintf(os.Stderr, "unicorn-etl: %s: %v\n", exitStatusName(code), err)
		os.Exit(code)
	}
}
