package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mobility-bench/mobench/internal/config"
	"github.com/mobility-bench/mobench/internal/dataset"
	"github.com/mobility-bench/mobench/internal/metrics"
	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/report"
	"github.com/mobility-bench/mobench/internal/resultstore"
	"github.com/mobility-bench/mobench/internal/tools"
)

var (
	evalDataset    string
	evalResultsDir string
)

func newEvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <run-id>",
		Short: "Score a run's traces and persist the metric table",
		Long: `Score every persisted trace of a run against ground truth, aggregate
overall and per intent family, and store the metric table with the run.`,
		Args: cobra.ExactArgs(1),
		RunE: evaluateCommandE,
	}

	cmd.Flags().StringVar(&evalDataset, "dataset", "", "Dataset file (json, yaml, or csv)")
	cmd.Flags().StringVar(&evalResultsDir, "results-dir", "", "Result store root directory")

	return cmd
}

func evaluateCommandE(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	if evalDataset != "" {
		cfg.Paths.Dataset = evalDataset
	}
	if evalResultsDir != "" {
		cfg.Paths.Results = evalResultsDir
	}

	source, err := dataset.Load(cfg.Paths.Dataset)
	if err != nil {
		return err
	}

	store := resultstore.New(cfg.Paths.Results)
	manifest, err := store.LoadManifest(runID)
	if err != nil {
		return err
	}
	traces, err := store.LoadTraces(runID)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		return fmt.Errorf("evaluate: run %s has no persisted traces", runID)
	}

	engine, err := metrics.NewEngine(metrics.Config{
		IntentThreshold: cfg.Metrics.IntentThreshold,
		Catalog:         tools.MobilityCatalog(),
	})
	if err != nil {
		return err
	}

	evals, err := engine.EvaluateRun(traces, source)
	if err != nil {
		return err
	}

	// Failed pairs without a trace still count against delivery.
	for key, pair := range manifest.Pairs {
		if pair.Status != models.PairFailed || pair.TracePath != "" {
			continue
		}
		gt, ok := source.GroundTruth(pair.CaseID)
		if !ok {
			return fmt.Errorf("evaluate: no ground truth for case %s", pair.CaseID)
		}
		evals = append(evals, engine.EvaluateAbsent(key, pair.CaseID, pair.ModelID, gt))
	}
	sort.Slice(evals, func(i, j int) bool { return evals[i].Key < evals[j].Key })

	table := metrics.Aggregate(runID, evals)
	if err := store.SaveMetricTable(runID, table); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.RenderTable(table))
	return nil
}
