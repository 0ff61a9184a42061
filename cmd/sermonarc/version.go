package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Populated at build time through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sermonarc %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
