package metrics

import (
	"fmt"

	"github.com/mobility-bench/mobench/internal/models"
)

// planningMetric scores the agent's decomposed step list against the
// reference steps. Matching is greedy earliest-unmatched-first over
// (tool name, tolerant args): deterministic and cheap, not optimal
// bipartite assignment.
type planningMetric struct{}

func (m *planningMetric) Name() string { return MetricPlanning }

func (m *planningMetric) Evaluate(trace *models.ExecutionTrace, gt models.GroundTruth) models.MetricResult {
	if trace.Status != models.StatusCompleted {
		return models.NA(MetricPlanning, fmt.Sprintf("trace status %s, no plan to score", trace.Status))
	}
	if len(gt.Steps) == 0 {
		return models.NA(MetricPlanning, "ground truth has no reference steps")
	}

	predicted := trace.Plan.Steps
	matched := matchSteps(predicted, gt.Steps)

	precision := float64(matched) / float64(len(gt.Steps))
	recall := 0.0
	if len(predicted) > 0 {
		recall = float64(matched) / float64(len(predicted))
	}

	return models.MetricResult{
		Metric: MetricPlanning,
		Scores: map[string]float64{
			"precision": precision,
			"recall":    recall,
		},
	}
}

// matchSteps counts predicted steps that pair with a reference step.
// Each reference step matches at most once; candidates are consumed in
// order.
func matchSteps(predicted, reference []models.Step) int {
	used := make([]bool, len(reference))
	matched := 0
	for _, pred := range predicted {
		for i, ref := range reference {
			if used[i] {
				continue
			}
			if stepsEquivalent(pred, ref) {
				used[i] = true
				matched++
				break
			}
		}
	}
	return matched
}
