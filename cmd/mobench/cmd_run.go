package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mobility-bench/mobench/internal/config"
	"github.com/mobility-bench/mobench/internal/dataset"
	"github.com/mobility-bench/mobench/internal/execution"
	"github.com/mobility-bench/mobench/internal/orchestration"
	"github.com/mobility-bench/mobench/internal/replay"
	"github.com/mobility-bench/mobench/internal/resultstore"
	"github.com/mobility-bench/mobench/internal/tools"
)

var (
	runDataset     string
	runResultsDir  string
	runCacheDir    string
	runModels      []string
	runAgent       string
	runResume      string
	runWorkers     int
	runMaxAttempts int
	runMaxSteps    int
	runTimeoutSec  int
	runFramework   string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the benchmark over models x cases",
		Long: `Execute every (model, case) pair with a bounded worker pool.

Tool calls are served from the sandbox replay cache, so repeated runs see
bit-identical observations. Progress is tracked in a resumable manifest;
use --resume to continue an interrupted run.`,
		Args: cobra.NoArgs,
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runDataset, "dataset", "", "Dataset file (json, yaml, or csv)")
	cmd.Flags().StringVar(&runResultsDir, "results-dir", "", "Result store root directory")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Replay cache directory")
	cmd.Flags().StringArrayVar(&runModels, "model", nil, "Model to evaluate (can be repeated)")
	cmd.Flags().StringVar(&runAgent, "agent", "oracle", "Agent adapter (oracle replays the reference steps)")
	cmd.Flags().StringVar(&runResume, "resume", "", "Resume a previous run by id")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of concurrent workers")
	cmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "Execution attempts per pair before it is marked failed")
	cmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "Step budget per case")
	cmd.Flags().IntVar(&runTimeoutSec, "timeout", 0, "Wall-clock budget per case in seconds")
	cmd.Flags().StringVar(&runFramework, "framework", "", "Framework id recorded on traces")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	source, err := dataset.Load(cfg.Paths.Dataset)
	if err != nil {
		return err
	}

	// Live mode needs an upstream service invoker, which only agent
	// adapter deployments carry. The CLI always scores from recordings.
	if cfg.Run.Mode != string(replay.ModeSandbox) {
		return fmt.Errorf("run: mode %q is not available from the CLI, record a sandbox cache first", cfg.Run.Mode)
	}
	cache, err := replay.Open(cfg.Paths.Cache, replay.ModeSandbox, nil)
	if err != nil {
		return err
	}

	factory, err := agentFactory(runAgent, source)
	if err != nil {
		return err
	}

	store := resultstore.New(cfg.Paths.Results)
	runner := orchestration.NewRunner(store, source, tools.MobilityCatalog(), cache, factory,
		orchestration.WithWorkers(cfg.Run.Workers),
		orchestration.WithMaxAttempts(cfg.Run.MaxAttempts),
		orchestration.WithBudgets(execution.Budgets{
			MaxSteps: cfg.Run.MaxSteps,
			Timeout:  time.Duration(cfg.Run.TimeoutSec) * time.Second,
		}),
		orchestration.WithFrameworkID(cfg.Run.Framework),
	)
	runner.OnProgress(printProgress(cmd))

	var runID string
	if runResume != "" {
		runID = runResume
		err = runner.Resume(cmd.Context(), runID)
	} else {
		if len(cfg.Run.Models) == 0 {
			return fmt.Errorf("run: no models configured, pass --model or set run.models in .mobench.yaml")
		}
		runID, err = runner.Start(cmd.Context(), cfg.Run.Models)
	}
	if err != nil {
		return err
	}

	manifest, err := store.LoadManifest(runID)
	if err != nil {
		return err
	}
	progress := manifest.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d completed, %d failed\n", runID, progress.Completed, progress.Failed)

	if progress.Failed > 0 {
		return &RunFailureError{Message: fmt.Sprintf("run %s: %d pair(s) failed", runID, progress.Failed)}
	}
	return nil
}

// loadRunConfig merges .mobench.yaml with the run command's flags.
func loadRunConfig() (*config.ProjectConfig, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}

	if runDataset != "" {
		cfg.Paths.Dataset = runDataset
	}
	if runResultsDir != "" {
		cfg.Paths.Results = runResultsDir
	}
	if runCacheDir != "" {
		cfg.Paths.Cache = runCacheDir
	}
	if len(runModels) > 0 {
		cfg.Run.Models = runModels
	}
	if runWorkers > 0 {
		cfg.Run.Workers = runWorkers
	}
	if runMaxAttempts > 0 {
		cfg.Run.MaxAttempts = runMaxAttempts
	}
	if runMaxSteps > 0 {
		cfg.Run.MaxSteps = runMaxSteps
	}
	if runTimeoutSec > 0 {
		cfg.Run.TimeoutSec = runTimeoutSec
	}
	if runFramework != "" {
		cfg.Run.Framework = runFramework
	}

	return cfg, cfg.Validate()
}

func agentFactory(name string, source *dataset.Source) (orchestration.AgentFactory, error) {
	switch name {
	case "oracle":
		return func(string) (execution.Agent, error) {
			return execution.NewOracleAgent(source), nil
		}, nil
	default:
		return nil, fmt.Errorf("run: unknown agent adapter %q", name)
	}
}

func printProgress(cmd *cobra.Command) orchestration.ProgressListener {
	out := cmd.OutOrStdout()
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventPairComplete:
			fmt.Fprintf(out, "  ok   %s %s\n", event.ModelID, event.CaseID)
		case orchestration.EventPairRetry:
			fmt.Fprintf(out, "  retry %s %s (attempt %d, %s)\n", event.ModelID, event.CaseID, event.Attempt, event.Status)
		case orchestration.EventPairFailed:
			fmt.Fprintf(out, "  FAIL %s %s (%s)\n", event.ModelID, event.CaseID, event.FailureClass)
		}
	}
}
