package main

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mobench",
		Short: "mobench - benchmark LLM mobility agents against route-planning queries",
		Long: `mobench runs LLM-driven mobility agents against real-world
route-planning and travel-information queries, replays recorded tool
responses for reproducible scoring, and reports multi-dimensional
metrics per model and per intent family.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetDefault(slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newCasesCommand())
	cmd.AddCommand(newTraceCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newArchiveCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
