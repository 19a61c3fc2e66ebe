package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mobility-bench/mobench/internal/config"
	"github.com/mobility-bench/mobench/internal/metrics"
	"github.com/mobility-bench/mobench/internal/report"
	"github.com/mobility-bench/mobench/internal/resultstore"
)

var reportResultsDir string

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render the stored metric table of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  reportCommandE,
	}

	cmd.Flags().StringVar(&reportResultsDir, "results-dir", "", "Result store root directory")

	return cmd
}

func reportCommandE(cmd *cobra.Command, args []string) error {
	runID := args[0]

	store, err := storeFromFlags(reportResultsDir)
	if err != nil {
		return err
	}

	var table metrics.Table
	if err := store.LoadMetricTable(runID, &table); err != nil {
		return fmt.Errorf("report: no metric table for run %s, run `mobench evaluate %s` first: %w", runID, runID, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), report.RenderTable(&table))
	return nil
}

// storeFromFlags resolves the result store from a flag override or the
// project configuration.
func storeFromFlags(override string) (*resultstore.Store, error) {
	if override != "" {
		return resultstore.New(override), nil
	}
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	return resultstore.New(cfg.Paths.Results), nil
}
