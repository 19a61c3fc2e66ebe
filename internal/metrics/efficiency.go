package metrics

import (
	"github.com/mobility-bench/mobench/internal/models"
)

// efficiencyMetric reports raw cost figures. No pass/fail notion; the
// numbers feed the report table directly.
type efficiencyMetric struct{}

func (m *efficiencyMetric) Name() string { return MetricEfficiency }

func (m *efficiencyMetric) Evaluate(trace *models.ExecutionTrace, _ models.GroundTruth) models.MetricResult {
	return models.MetricResult{
		Metric: MetricEfficiency,
		Scores: map[string]float64{
			"tokens_in":   float64(trace.TokensIn),
			"tokens_out":  float64(trace.TokensOut),
			"duration_ms": float64(trace.DurationMs),
			"tool_calls":  float64(len(trace.ToolCalls)),
		},
	}
}
