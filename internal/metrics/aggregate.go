package metrics

import (
	"sort"
	"time"

	"github.com/mobility-bench/mobench/internal/statistics"
)

// ciSeed fixes the bootstrap resampling so the same evaluations always
// aggregate to the same table.
const ciSeed = 1

// Group is one aggregated view: overall, one intent family, or one
// model.
type Group struct {
	Cases int `json:"cases"`
	// Scores maps "metric.sub" to the mean over applicable cases.
	Scores map[string]float64 `json:"scores"`
	// Composite is a bootstrap confidence interval over the per-case
	// composite score, present when the group has at least one case
	// with ratio scores.
	Composite *statistics.ConfidenceInterval `json:"composite,omitempty"`
}

// Table is the aggregated metric output for one run.
type Table struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Overall        Group            `json:"overall"`
	ByIntentFamily map[string]Group `json:"by_intent_family"`
	ByModel        map[string]Group `json:"by_model"`

	// Excluded lists, per ratio metric, the pair keys whose traces were
	// not applicable and therefore left out of that metric's
	// denominator. Recorded explicitly, never silently averaged in.
	Excluded map[string][]string `json:"excluded,omitempty"`
}

// Aggregate folds per-case evaluations into overall, per-intent-family,
// and per-model views.
func Aggregate(runID string, evals []CaseEvaluation) *Table {
	table := &Table{
		RunID:          runID,
		GeneratedAt:    time.Now().UTC(),
		Overall:        aggregateGroup(evals),
		ByIntentFamily: map[string]Group{},
		ByModel:        map[string]Group{},
		Excluded:       map[string][]string{},
	}

	byFamily := map[string][]CaseEvaluation{}
	byModel := map[string][]CaseEvaluation{}
	for _, eval := range evals {
		family := eval.IntentFamily
		if family == "" {
			family = "uncategorized"
		}
		byFamily[family] = append(byFamily[family], eval)
		byModel[eval.ModelID] = append(byModel[eval.ModelID], eval)

		for metric, result := range eval.Results {
			if result.NotApplicable {
				table.Excluded[metric] = append(table.Excluded[metric], eval.Key)
			}
		}
	}

	for family, group := range byFamily {
		table.ByIntentFamily[family] = aggregateGroup(group)
	}
	for model, group := range byModel {
		table.ByModel[model] = aggregateGroup(group)
	}
	for metric := range table.Excluded {
		sort.Strings(table.Excluded[metric])
	}

	return table
}

func aggregateGroup(evals []CaseEvaluation) Group {
	sums := map[string]float64{}
	counts := map[string]int{}
	var composites []float64

	for _, eval := range evals {
		for metric, result := range eval.Results {
			if result.NotApplicable {
				continue
			}
			for sub, score := range result.Scores {
				key := metric + "." + sub
				sums[key] += score
				counts[key]++
			}
		}
		if composite, ok := compositeScore(eval); ok {
			composites = append(composites, composite)
		}
	}

	scores := make(map[string]float64, len(sums))
	for key, sum := range sums {
		scores[key] = sum / float64(counts[key])
	}

	group := Group{Cases: len(evals), Scores: scores}
	if len(composites) > 0 {
		ci := statistics.BootstrapCIWithSeed(composites, 0.95, ciSeed)
		group.Composite = &ci
	}
	return group
}

// compositeScore collapses one case's ratio sub-scores into a single
// [0,1] quality figure for interval estimation. Redundancy counts
// inverted; efficiency and raw similarity are left out.
func compositeScore(eval CaseEvaluation) (float64, bool) {
	parts := []struct {
		metric string
		sub    string
		invert bool
	}{
		{MetricInstruction, "intent_match", false},
		{MetricInstruction, "slot_match", false},
		{MetricPlanning, "precision", false},
		{MetricPlanning, "recall", false},
		{MetricToolUse, "coverage", false},
		{MetricToolUse, "redundancy", true},
		{MetricToolUse, "schema_compliance", false},
		{MetricDecision, "delivery_rate", false},
		{MetricDecision, "final_pass_rate", false},
	}

	sum := 0.0
	n := 0
	for _, part := range parts {
		result, ok := eval.Results[part.metric]
		if !ok || result.NotApplicable {
			continue
		}
		score, ok := result.Scores[part.sub]
		if !ok {
			continue
		}
		if part.invert {
			score = 1 - score
		}
		sum += score
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
