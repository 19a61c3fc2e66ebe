// Package orchestration fans a set of models out over a dataset with a
// bounded worker pool. Every (model, case) pair is tracked in a run
// manifest that is persisted after each transition, so an interrupted
// run resumes exactly where it stopped.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mobility-bench/mobench/internal/dataset"
	"github.com/mobility-bench/mobench/internal/execution"
	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/resultstore"
	"github.com/mobility-bench/mobench/internal/tools"
)

// Defaults for the worker pool and retry policy.
const (
	DefaultWorkers     = 4
	DefaultMaxAttempts = 3
)

// AgentFactory builds the agent adapter for a model under test. Called
// once per (model, case) pair so adapters never share per-case state.
type AgentFactory func(modelID string) (execution.Agent, error)

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunComplete  EventType = "run_complete"
	EventPairStart    EventType = "pair_start"
	EventPairComplete EventType = "pair_complete"
	EventPairRetry    EventType = "pair_retry"
	EventPairFailed   EventType = "pair_failed"
	EventPairSkipped  EventType = "pair_skipped"
)

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	EventType    EventType
	RunID        string
	ModelID      string
	CaseID       string
	Attempt      int
	Status       models.Status
	FailureClass models.FailureClass
	Progress     models.Progress
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds the number of concurrently executing pairs.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithMaxAttempts sets how many times a pair is executed before it is
// marked failed.
func WithMaxAttempts(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBudgets sets the per-case execution budgets.
func WithBudgets(b execution.Budgets) RunnerOption {
	return func(r *Runner) { r.budgets = b }
}

// WithFrameworkID tags traces with the agent framework adapter in use.
func WithFrameworkID(id string) RunnerOption {
	return func(r *Runner) { r.frameworkID = id }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// Runner executes a benchmark run over models x cases.
type Runner struct {
	store   *resultstore.Store
	source  *dataset.Source
	catalog *tools.Catalog
	backend execution.ToolBackend
	factory AgentFactory

	workers     int
	maxAttempts int
	budgets     execution.Budgets
	frameworkID string
	logger      *slog.Logger

	// manifestMu serializes manifest mutation and persistence.
	manifestMu sync.Mutex

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// NewRunner creates a runner over the given store, dataset, and tool
// backend.
func NewRunner(store *resultstore.Store, source *dataset.Source, catalog *tools.Catalog, backend execution.ToolBackend, factory AgentFactory, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:       store,
		source:      source,
		catalog:     catalog,
		backend:     backend,
		factory:     factory,
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		frameworkID: "native",
		logger:      slog.Default(),
		listeners:   []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Start creates a fresh run over the given models and executes it to
// completion. It returns the run ID even when execution fails partway,
// so the caller can resume.
func (r *Runner) Start(ctx context.Context, modelIDs []string) (string, error) {
	if len(modelIDs) == 0 {
		return "", fmt.Errorf("orchestration: no models given")
	}
	if r.source.Len() == 0 {
		return "", fmt.Errorf("orchestration: dataset %s has no cases", r.source.Ref())
	}

	runID := uuid.NewString()
	manifest := models.NewRunManifest(runID, r.source.Ref(), modelIDs, r.source.CaseIDs())
	if err := r.store.CreateRun(manifest); err != nil {
		return "", err
	}

	return runID, r.run(ctx, manifest)
}

// Resume continues a previously started run, skipping pairs that
// already committed a trace.
func (r *Runner) Resume(ctx context.Context, runID string) error {
	manifest, err := r.store.LoadManifest(runID)
	if err != nil {
		return err
	}
	return r.run(ctx, manifest)
}

func (r *Runner) run(ctx context.Context, manifest *models.RunManifest) error {
	r.logger.Info("run started",
		"run", manifest.RunID,
		"models", len(manifest.Models),
		"cases", r.source.Len(),
		"workers", r.workers)
	r.notifyProgress(ProgressEvent{
		EventType: EventRunStart,
		RunID:     manifest.RunID,
		Progress:  manifest.Counts(),
	})

	// Deterministic dispatch order keeps logs and retries readable.
	keys := make([]string, 0, len(manifest.Pairs))
	for key := range manifest.Pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for _, key := range keys {
		state := manifest.Pairs[key]
		if state.Status == models.PairCompleted || state.Status == models.PairFailed {
			r.notifyProgress(ProgressEvent{
				EventType: EventPairSkipped,
				RunID:     manifest.RunID,
				ModelID:   state.ModelID,
				CaseID:    state.CaseID,
			})
			continue
		}
		group.Go(func() error {
			return r.runPair(gctx, manifest, state.ModelID, state.CaseID)
		})
	}

	err := group.Wait()

	r.notifyProgress(ProgressEvent{
		EventType: EventRunComplete,
		RunID:     manifest.RunID,
		Progress:  manifest.Counts(),
	})
	r.logger.Info("run finished", "run", manifest.RunID, "progress", manifest.Counts(), "err", err)
	return err
}

// errTraceWrite marks a trace persistence failure. It is retried per
// pair like any other attempt failure and never aborts the run.
var errTraceWrite = errors.New("orchestration: trace write failed")

// runPair executes one (model, case) pair with retries. Agent and
// persistence failures are absorbed into the manifest; only manifest
// save errors propagate and abort the run.
func (r *Runner) runPair(ctx context.Context, manifest *models.RunManifest, modelID, caseID string) error {
	c, ok := r.source.Case(caseID)
	if !ok {
		// Manifest references a case the dataset no longer has. Resume
		// with a mutated dataset is operator error and aborts the run.
		if err := r.markFailed(manifest, modelID, caseID, models.FailureCrash); err != nil {
			return err
		}
		return fmt.Errorf("orchestration: case %s not in dataset %s", caseID, r.source.Ref())
	}

	for {
		attempt, err := r.beginAttempt(manifest, modelID, caseID)
		if err != nil {
			return err
		}
		r.notifyProgress(ProgressEvent{
			EventType: EventPairStart,
			RunID:     manifest.RunID,
			ModelID:   modelID,
			CaseID:    caseID,
			Attempt:   attempt,
		})

		agent, err := r.factory(modelID)
		if err != nil {
			r.logger.Error("agent factory failed", "model", modelID, "err", err)
			return r.markFailed(manifest, modelID, caseID, models.FailureCrash)
		}

		exec := execution.NewExecutor(agent, r.catalog, r.backend, r.budgets, r.logger)
		trace := exec.Execute(ctx, &c, modelID, r.frameworkID)

		status, class := models.PairCompleted, models.FailureClass("")
		if trace.Status != models.StatusCompleted {
			if attempt < r.maxAttempts && ctx.Err() == nil {
				r.logger.Warn("pair attempt failed, retrying",
					"model", modelID, "case", caseID,
					"attempt", attempt, "status", trace.Status, "err", trace.Error)
				r.notifyProgress(ProgressEvent{
					EventType: EventPairRetry,
					RunID:     manifest.RunID,
					ModelID:   modelID,
					CaseID:    caseID,
					Attempt:   attempt,
					Status:    trace.Status,
				})
				continue
			}
			// Retries exhausted: the final trace is still persisted so
			// scoring can count the failure.
			status, class = models.PairFailed, classify(trace.Status)
		}

		err = r.commit(manifest, trace, status, class)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errTraceWrite) {
			return err
		}
		if attempt < r.maxAttempts && ctx.Err() == nil {
			r.logger.Warn("trace write failed, retrying pair",
				"model", modelID, "case", caseID, "attempt", attempt, "err", err)
			r.notifyProgress(ProgressEvent{
				EventType: EventPairRetry,
				RunID:     manifest.RunID,
				ModelID:   modelID,
				CaseID:    caseID,
				Attempt:   attempt,
				Status:    trace.Status,
			})
			continue
		}
		return r.markFailed(manifest, modelID, caseID, models.FailurePersistence)
	}
}

// classify maps a terminal trace status to a manifest failure class.
func classify(status models.Status) models.FailureClass {
	switch status {
	case models.StatusToolError:
		return models.FailureToolError
	case models.StatusMaxSteps:
		return models.FailureTimeout
	default:
		return models.FailureCrash
	}
}

func (r *Runner) beginAttempt(manifest *models.RunManifest, modelID, caseID string) (int, error) {
	r.manifestMu.Lock()
	defer r.manifestMu.Unlock()

	key := models.PairKey(modelID, caseID)
	state := manifest.Pairs[key]
	state.Status = models.PairRunning
	state.Attempts++
	manifest.Pairs[key] = state

	if err := r.store.SaveManifest(manifest); err != nil {
		return 0, err
	}
	return state.Attempts, nil
}

// commit persists the trace first and only then flips the manifest
// entry, so a completed pair always has its trace on disk.
func (r *Runner) commit(manifest *models.RunManifest, trace *models.ExecutionTrace, status models.PairStatus, class models.FailureClass) error {
	tracePath, err := r.store.WriteTrace(manifest.RunID, trace)
	if err != nil {
		r.logger.Error("trace persistence failed", "model", trace.ModelID, "case", trace.CaseID, "err", err)
		return fmt.Errorf("%w: %w", errTraceWrite, err)
	}

	r.manifestMu.Lock()
	key := models.PairKey(trace.ModelID, trace.CaseID)
	state := manifest.Pairs[key]
	state.Status = status
	state.FailureClass = class
	state.TracePath = tracePath
	state.UpdatedAt = trace.StartedAt
	manifest.Pairs[key] = state
	saveErr := r.store.SaveManifest(manifest)
	event := ProgressEvent{
		RunID:        manifest.RunID,
		ModelID:      trace.ModelID,
		CaseID:       trace.CaseID,
		Attempt:      state.Attempts,
		Status:       trace.Status,
		FailureClass: class,
		Progress:     manifest.Counts(),
	}
	r.manifestMu.Unlock()

	if saveErr != nil {
		return saveErr
	}

	if status == models.PairCompleted {
		event.EventType = EventPairComplete
	} else {
		event.EventType = EventPairFailed
	}
	r.notifyProgress(event)
	return nil
}

// markFailed records a pair failure that produced no persisted trace.
// It returns an error only when the manifest itself cannot be saved.
func (r *Runner) markFailed(manifest *models.RunManifest, modelID, caseID string, class models.FailureClass) error {
	r.manifestMu.Lock()
	key := models.PairKey(modelID, caseID)
	state := manifest.Pairs[key]
	state.Status = models.PairFailed
	state.FailureClass = class
	manifest.Pairs[key] = state
	saveErr := r.store.SaveManifest(manifest)
	progress := manifest.Counts()
	r.manifestMu.Unlock()

	r.notifyProgress(ProgressEvent{
		EventType:    EventPairFailed,
		RunID:        manifest.RunID,
		ModelID:      modelID,
		CaseID:       caseID,
		FailureClass: class,
		Progress:     progress,
	})
	return saveErr
}
