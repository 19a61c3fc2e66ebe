package metrics

import (
	"fmt"

	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/tools"
)

// toolUseMetric scores how the agent used the tool surface: required
// tool coverage, call redundancy, and schema compliance of arguments.
type toolUseMetric struct {
	catalog *tools.Catalog
}

func (m *toolUseMetric) Name() string { return MetricToolUse }

func (m *toolUseMetric) Evaluate(trace *models.ExecutionTrace, gt models.GroundTruth) models.MetricResult {
	if trace.Status != models.StatusCompleted {
		return models.NA(MetricToolUse, fmt.Sprintf("trace status %s, call sequence incomplete", trace.Status))
	}

	scores := map[string]float64{}

	called := map[string]int{}
	for _, name := range trace.ToolNames() {
		called[name]++
	}

	if len(gt.RequiredTools) > 0 {
		covered := 0
		for _, req := range gt.RequiredTools {
			if called[req] > 0 {
				covered++
			}
		}
		scores["coverage"] = float64(covered) / float64(len(gt.RequiredTools))
	} else {
		scores["coverage"] = 1
	}

	total := len(trace.ToolCalls)
	if total > 0 {
		// Expected call counts come from the reference step list; calls
		// beyond the expected count for a tool are redundant, as is any
		// call to a tool the reference never uses.
		expected := map[string]int{}
		for _, step := range gt.Steps {
			expected[step.Tool]++
		}
		necessary := 0
		for name, n := range called {
			if exp := expected[name]; n < exp {
				necessary += n
			} else {
				necessary += exp
			}
		}
		scores["redundancy"] = float64(total-necessary) / float64(total)

		compliant := 0
		for _, call := range trace.ToolCalls {
			if m.catalog.Validate(call.Tool, call.Args) == nil {
				compliant++
			}
		}
		scores["schema_compliance"] = float64(compliant) / float64(total)
	} else {
		scores["redundancy"] = 0
		scores["schema_compliance"] = 1
	}

	return models.MetricResult{Metric: MetricToolUse, Scores: scores}
}
