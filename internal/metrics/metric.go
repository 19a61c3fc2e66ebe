// Package metrics scores execution traces against ground truth along
// five independent dimensions, then aggregates per-case results into
// overall and per-intent-family views. Every module is pure: a
// malformed or failed trace yields an explicit not-applicable result,
// never a silent zero.
package metrics

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/tools"
)

// Metric names.
const (
	MetricInstruction = "instruction_understanding"
	MetricPlanning    = "planning"
	MetricToolUse     = "tool_use"
	MetricDecision    = "decision_making"
	MetricEfficiency  = "efficiency"
)

// DefaultIntentThreshold is the similarity an intent label must reach
// against its ground-truth label to count as matched.
const DefaultIntentThreshold = 0.7

// Config holds the scoring knobs shared across metrics.
type Config struct {
	// IntentThreshold overrides DefaultIntentThreshold when > 0.
	IntentThreshold float64
	// Catalog supplies the declared tool schemas for the compliance
	// sub-score. Required.
	Catalog *tools.Catalog
}

func (c Config) intentThreshold() float64 {
	if c.IntentThreshold > 0 {
		return c.IntentThreshold
	}
	return DefaultIntentThreshold
}

// Metric scores one trace against its ground truth.
type Metric interface {
	Name() string
	Evaluate(trace *models.ExecutionTrace, gt models.GroundTruth) models.MetricResult
}

// CaseEvaluation bundles every metric result for one (model, case) pair.
type CaseEvaluation struct {
	Key          string                         `json:"key"`
	CaseID       string                         `json:"case_id"`
	ModelID      string                         `json:"model_id"`
	IntentFamily string                         `json:"intent_family"`
	Results      map[string]models.MetricResult `json:"results"`
}

// TruthLookup resolves a case to its ground truth.
type TruthLookup interface {
	GroundTruth(caseID string) (models.GroundTruth, bool)
}

// Engine runs all five metrics over traces.
type Engine struct {
	metrics []Metric
}

// NewEngine builds an engine with the full metric set.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("metrics: config requires a tool catalog")
	}
	return &Engine{
		metrics: []Metric{
			&instructionMetric{threshold: cfg.intentThreshold()},
			&planningMetric{},
			&toolUseMetric{catalog: cfg.Catalog},
			&decisionMetric{},
			&efficiencyMetric{},
		},
	}, nil
}

// EvaluateCase scores one trace with every metric.
func (e *Engine) EvaluateCase(key string, trace *models.ExecutionTrace, gt models.GroundTruth) CaseEvaluation {
	eval := CaseEvaluation{
		Key:          key,
		CaseID:       trace.CaseID,
		ModelID:      trace.ModelID,
		IntentFamily: gt.IntentFamily,
		Results:      make(map[string]models.MetricResult, len(e.metrics)),
	}
	for _, m := range e.metrics {
		eval.Results[m.Name()] = m.Evaluate(trace, gt)
	}
	return eval
}

// EvaluateAbsent scores a failed pair that never persisted a trace.
// The pair counts as not delivered so failures are never averaged away,
// while the trace-dependent metrics are excluded explicitly.
func (e *Engine) EvaluateAbsent(key, caseID, modelID string, gt models.GroundTruth) CaseEvaluation {
	const reason = "no persisted trace for failed pair"
	failed := false
	return CaseEvaluation{
		Key:          key,
		CaseID:       caseID,
		ModelID:      modelID,
		IntentFamily: gt.IntentFamily,
		Results: map[string]models.MetricResult{
			MetricInstruction: models.NA(MetricInstruction, reason),
			MetricPlanning:    models.NA(MetricPlanning, reason),
			MetricToolUse:     models.NA(MetricToolUse, reason),
			MetricEfficiency:  models.NA(MetricEfficiency, reason),
			MetricDecision: {
				Metric: MetricDecision,
				Scores: map[string]float64{"delivery_rate": 0, "final_pass_rate": 0},
				Passed: &failed,
			},
		},
	}
}

// EvaluateRun scores every trace in parallel. Results come back sorted
// by pair key so downstream output is deterministic.
func (e *Engine) EvaluateRun(traces map[string]*models.ExecutionTrace, truths TruthLookup) ([]CaseEvaluation, error) {
	keys := make([]string, 0, len(traces))
	for key := range traces {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	evals := make([]CaseEvaluation, len(keys))
	workers := runtime.GOMAXPROCS(0)
	sem := make(chan struct{}, workers)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for i, key := range keys {
		i, key := i, key
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			trace := traces[key]
			gt, ok := truths.GroundTruth(trace.CaseID)
			if !ok {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("metrics: no ground truth for case %s", trace.CaseID)
				}
				errMu.Unlock()
				return
			}
			evals[i] = e.EvaluateCase(key, trace, gt)
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return evals, nil
}
