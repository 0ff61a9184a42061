package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmdCtx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "sermonarc",
		Short:         "Bulk downloader for the public sermon catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cmdCtx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&cmdCtx.outputDir, "output", "o", "", "Directory downloads land in")
	rootCmd.PersistentFlags().IntVarP(&cmdCtx.parallel, "parallel", "p", 0, "Concurrent downloads")
	rootCmd.PersistentFlags().StringVar(&cmdCtx.quality, "quality", "", "Preferred media tier (low, high, 1080p)")
	rootCmd.PersistentFlags().StringVar(&cmdCtx.kind, "kind", "", "Media kind to fetch (audio, video)")
	rootCmd.PersistentFlags().StringVar(&cmdCtx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newDownloadCommand(cmdCtx))
	rootCmd.AddCommand(newSearchCommand(cmdCtx))
	rootCmd.AddCommand(newHistoryCommand(cmdCtx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
