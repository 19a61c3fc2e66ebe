package metrics

import (
	"fmt"

	"github.com/mobility-bench/mobench/internal/models"
)

// instructionMetric checks whether the agent understood the request:
// did its stated intent match the ground-truth label, and did its
// extracted constraint slots equal the reference set.
type instructionMetric struct {
	threshold float64
}

func (m *instructionMetric) Name() string { return MetricInstruction }

func (m *instructionMetric) Evaluate(trace *models.ExecutionTrace, gt models.GroundTruth) models.MetricResult {
	if trace.Status != models.StatusCompleted {
		return models.NA(MetricInstruction, fmt.Sprintf("trace status %s, no plan to score", trace.Status))
	}

	sim := similarity(trace.Plan.Intent, gt.Intent)
	intentMatch := 0.0
	if sim >= m.threshold {
		intentMatch = 1
	}

	slotMatch := 0.0
	if slotsEqual(trace.Plan.Slots, gt.Constraints) {
		slotMatch = 1
	}

	return models.MetricResult{
		Metric: MetricInstruction,
		Scores: map[string]float64{
			"intent_match":      intentMatch,
			"intent_similarity": sim,
			"slot_match":        slotMatch,
		},
	}
}

// slotsEqual compares extracted slots against ground-truth constraints
// as sets: same keys, normalized-equal values.
func slotsEqual(got, want map[string]string) bool {
	if len(got) != len(want) {
		return false
	}
	for key, wv := range want {
		gv, ok := got[key]
		if !ok || normalizeText(gv) != normalizeText(wv) {
			return false
		}
	}
	return true
}
