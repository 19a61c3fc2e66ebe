package metrics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/tools"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{Catalog: tools.MobilityCatalog()})
	require.NoError(t, err)
	return engine
}

func goldenTruth() models.GroundTruth {
	return models.GroundTruth{
		CaseID:       "nav-001",
		Intent:       "driving route planning",
		IntentFamily: "route-planning",
		Constraints:  map[string]string{"origin": "天安门", "destination": "北京南站"},
		Steps: []models.Step{
			{Tool: "query_poi", Args: map[string]any{"keywords": "天安门", "city": "北京"}},
			{Tool: "driving_route", Args: map[string]any{"origin": "116.397,39.908", "destination": "116.378,39.865"}},
		},
		RequiredTools: []string{"query_poi", "driving_route"},
		Answer:        models.ExpectedAnswer{DistanceMeters: 8200, DurationSeconds: 1500},
		Tolerance:     models.Tolerance{}.WithDefaults(),
	}
}

func goldenTrace() *models.ExecutionTrace {
	return &models.ExecutionTrace{
		CaseID:  "nav-001",
		ModelID: "gpt-x",
		ToolCalls: []models.ToolCallRecord{
			{Tool: "query_poi", Args: map[string]any{"keywords": "天安门", "city": "北京"}, OK: true},
			{Tool: "driving_route", Args: map[string]any{"origin": "116.397,39.908", "destination": "116.378,39.865"}, OK: true},
		},
		Plan: models.Plan{
			Intent: "driving route planning",
			Slots:  map[string]string{"origin": "天安门", "destination": "北京南站"},
			Steps: []models.Step{
				{Tool: "query_poi", Args: map[string]any{"keywords": "天安门", "city": "北京"}},
				{Tool: "driving_route", Args: map[string]any{"origin": "116.397,39.908", "destination": "116.378,39.865"}},
			},
		},
		FinalAnswer: models.Answer{Text: "全程约8.2公里", DistanceMeters: 8230, DurationSeconds: 1450},
		Status:      models.StatusCompleted,
	}
}

// The reference scenario: exact required call sequence, answer within
// 50 m and 10% duration tolerance. Everything scores at the ceiling.
func TestGoldenPath(t *testing.T) {
	eval := newEngine(t).EvaluateCase("gpt-x::nav-001", goldenTrace(), goldenTruth())

	decision := eval.Results[MetricDecision]
	require.Equal(t, 1.0, decision.Scores["delivery_rate"])
	require.Equal(t, 1.0, decision.Scores["final_pass_rate"])
	require.NotNil(t, decision.Passed)
	require.True(t, *decision.Passed)

	toolUse := eval.Results[MetricToolUse]
	require.Equal(t, 1.0, toolUse.Scores["coverage"])
	require.Equal(t, 0.0, toolUse.Scores["redundancy"])
	require.Equal(t, 1.0, toolUse.Scores["schema_compliance"])

	planning := eval.Results[MetricPlanning]
	require.Equal(t, 1.0, planning.Scores["precision"])
	require.Equal(t, 1.0, planning.Scores["recall"])

	instruction := eval.Results[MetricInstruction]
	require.Equal(t, 1.0, instruction.Scores["intent_match"])
	require.Equal(t, 1.0, instruction.Scores["slot_match"])
}

func TestRatioScoresWithinBounds(t *testing.T) {
	trace := goldenTrace()
	// Pad with redundant and off-schema calls.
	trace.ToolCalls = append(trace.ToolCalls,
		models.ToolCallRecord{Tool: "weather_query", Args: map[string]any{"city": "北京"}, OK: true},
		models.ToolCallRecord{Tool: "driving_route", Args: map[string]any{"origin": "bad"}},
	)
	trace.Plan.Steps = append(trace.Plan.Steps, models.Step{Tool: "transit_route", Args: map[string]any{}})

	eval := newEngine(t).EvaluateCase("k", trace, goldenTruth())
	for metric, result := range eval.Results {
		if metric == MetricEfficiency {
			continue
		}
		for sub, score := range result.Scores {
			if metric == MetricInstruction && sub == "intent_similarity" {
				continue
			}
			require.GreaterOrEqual(t, score, 0.0, "%s.%s", metric, sub)
			require.LessOrEqual(t, score, 1.0, "%s.%s", metric, sub)
		}
	}

	decision := eval.Results[MetricDecision]
	require.LessOrEqual(t, decision.Scores["final_pass_rate"], decision.Scores["delivery_rate"])
}

func TestInstruction(t *testing.T) {
	metric := &instructionMetric{threshold: DefaultIntentThreshold}

	t.Run("similar intent label matches", func(t *testing.T) {
		trace := goldenTrace()
		trace.Plan.Intent = "driving route query"
		result := metric.Evaluate(trace, goldenTruth())
		// 2 of 3 tokens shared: below the 0.7 threshold.
		require.Equal(t, 0.0, result.Scores["intent_match"])
		require.InDelta(t, 2.0/3.0, result.Scores["intent_similarity"], 1e-9)
	})

	t.Run("chinese labels compare by bigram", func(t *testing.T) {
		require.Equal(t, 1.0, similarity("驾车路线规划", "驾车路线规划"))
		require.Greater(t, similarity("驾车路线规划", "驾车路线"), 0.5)
		require.Equal(t, 0.0, similarity("驾车路线", "天气查询"))
	})

	t.Run("slot mismatch", func(t *testing.T) {
		trace := goldenTrace()
		trace.Plan.Slots["destination"] = "北京西站"
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 0.0, result.Scores["slot_match"])
	})

	t.Run("slot values compare normalized", func(t *testing.T) {
		require.True(t, slotsEqual(
			map[string]string{"city": " Beijing "},
			map[string]string{"city": "beijing"},
		))
	})

	t.Run("failed trace is not applicable", func(t *testing.T) {
		trace := goldenTrace()
		trace.Status = models.StatusToolError
		result := metric.Evaluate(trace, goldenTruth())
		require.True(t, result.NotApplicable)
		require.NotEmpty(t, result.Reason)
	})
}

func TestPlanning(t *testing.T) {
	metric := &planningMetric{}

	t.Run("partial decomposition", func(t *testing.T) {
		trace := goldenTrace()
		trace.Plan.Steps = trace.Plan.Steps[:1]
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 0.5, result.Scores["precision"])
		require.Equal(t, 1.0, result.Scores["recall"])
	})

	t.Run("extra steps lower recall", func(t *testing.T) {
		trace := goldenTrace()
		trace.Plan.Steps = append(trace.Plan.Steps,
			models.Step{Tool: "weather_query", Args: map[string]any{"city": "北京"}},
			models.Step{Tool: "traffic_status", Args: map[string]any{"road_name": "长安街", "city": "北京"}},
		)
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 1.0, result.Scores["precision"])
		require.Equal(t, 0.5, result.Scores["recall"])
	})

	t.Run("each reference step matches once", func(t *testing.T) {
		gt := goldenTruth()
		gt.Steps = gt.Steps[:1]
		trace := goldenTrace()
		trace.Plan.Steps = []models.Step{gt.Steps[0], gt.Steps[0]}
		result := metric.Evaluate(trace, gt)
		require.Equal(t, 1.0, result.Scores["precision"])
		require.Equal(t, 0.5, result.Scores["recall"])
	})

	t.Run("no reference steps is not applicable", func(t *testing.T) {
		gt := goldenTruth()
		gt.Steps = nil
		result := metric.Evaluate(goldenTrace(), gt)
		require.True(t, result.NotApplicable)
	})
}

func TestStepEquivalence(t *testing.T) {
	base := models.Step{Tool: "driving_route", Args: map[string]any{"origin": "116.397,39.908", "destination": "116.378,39.865"}}

	t.Run("numeric drift within tolerance", func(t *testing.T) {
		a := models.Step{Tool: "search_around_poi", Args: map[string]any{"radius": 1000}}
		b := models.Step{Tool: "search_around_poi", Args: map[string]any{"radius": 1000.0000001}}
		require.True(t, stepsEquivalent(a, b))
	})

	t.Run("string normalization", func(t *testing.T) {
		b := models.Step{Tool: "driving_route", Args: map[string]any{"origin": " 116.397,39.908", "destination": "116.378,39.865"}}
		require.True(t, stepsEquivalent(base, b))
	})

	t.Run("different tool", func(t *testing.T) {
		b := base
		b.Tool = "walking_route"
		require.False(t, stepsEquivalent(base, b))
	})

	t.Run("missing argument", func(t *testing.T) {
		b := models.Step{Tool: "driving_route", Args: map[string]any{"origin": "116.397,39.908"}}
		require.False(t, stepsEquivalent(base, b))
	})

	t.Run("list order is not semantic", func(t *testing.T) {
		a := models.Step{Tool: "query_poi", Args: map[string]any{"keywords": []any{"咖啡", "餐厅"}}}
		b := models.Step{Tool: "query_poi", Args: map[string]any{"keywords": []any{"餐厅", "咖啡"}}}
		require.True(t, stepsEquivalent(a, b))
	})
}

func TestToolUse(t *testing.T) {
	metric := &toolUseMetric{catalog: tools.MobilityCatalog()}

	t.Run("redundant calls", func(t *testing.T) {
		trace := goldenTrace()
		trace.ToolCalls = append(trace.ToolCalls,
			models.ToolCallRecord{Tool: "query_poi", Args: map[string]any{"keywords": "北京南站"}, OK: true},
			models.ToolCallRecord{Tool: "weather_query", Args: map[string]any{"city": "北京"}, OK: true},
		)
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 1.0, result.Scores["coverage"])
		require.Equal(t, 0.5, result.Scores["redundancy"])
	})

	t.Run("missing required tool", func(t *testing.T) {
		trace := goldenTrace()
		trace.ToolCalls = trace.ToolCalls[:1]
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 0.5, result.Scores["coverage"])
	})

	t.Run("off schema call lowers compliance", func(t *testing.T) {
		trace := goldenTrace()
		trace.ToolCalls = append(trace.ToolCalls,
			models.ToolCallRecord{Tool: "driving_route", Args: map[string]any{"origin": "116.397,39.908"}})
		result := metric.Evaluate(trace, goldenTruth())
		require.InDelta(t, 2.0/3.0, result.Scores["schema_compliance"], 1e-9)
	})

	t.Run("no calls", func(t *testing.T) {
		trace := goldenTrace()
		trace.ToolCalls = nil
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 0.0, result.Scores["coverage"])
		require.Equal(t, 0.0, result.Scores["redundancy"])
		require.Equal(t, 1.0, result.Scores["schema_compliance"])
	})
}

func TestDecision(t *testing.T) {
	metric := &decisionMetric{}

	t.Run("failed trace contributes zero delivery", func(t *testing.T) {
		trace := goldenTrace()
		trace.Status = models.StatusToolError
		trace.FinalAnswer = models.Answer{}
		result := metric.Evaluate(trace, goldenTruth())
		require.False(t, result.NotApplicable)
		require.Equal(t, 0.0, result.Scores["delivery_rate"])
		require.Equal(t, 0.0, result.Scores["final_pass_rate"])
	})

	t.Run("distance outside tolerance fails pass", func(t *testing.T) {
		trace := goldenTrace()
		trace.FinalAnswer.DistanceMeters = 8300
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 1.0, result.Scores["delivery_rate"])
		require.Equal(t, 0.0, result.Scores["final_pass_rate"])
	})

	t.Run("duration tolerance is a fraction", func(t *testing.T) {
		trace := goldenTrace()
		trace.FinalAnswer.DurationSeconds = 1651 // > 10% over 1500
		result := metric.Evaluate(trace, goldenTruth())
		require.Equal(t, 0.0, result.Scores["final_pass_rate"])
	})

	t.Run("coordinate tolerance uses great circle distance", func(t *testing.T) {
		gt := goldenTruth()
		gt.Answer = models.ExpectedAnswer{Location: "116.397428,39.90923"}
		trace := goldenTrace()
		// Roughly 30 m east of the reference point.
		trace.FinalAnswer.Location = "116.39778,39.90923"
		result := metric.Evaluate(trace, gt)
		require.Equal(t, 1.0, result.Scores["final_pass_rate"])

		// Roughly 500 m away.
		trace.FinalAnswer.Location = "116.4033,39.90923"
		result = metric.Evaluate(trace, gt)
		require.Equal(t, 0.0, result.Scores["final_pass_rate"])
	})

	t.Run("text expectation uses similarity threshold", func(t *testing.T) {
		gt := goldenTruth()
		gt.Answer = models.ExpectedAnswer{Text: "全程约8.2公里"}
		trace := goldenTrace()
		trace.FinalAnswer = models.Answer{Text: "全程约8.2公里"}
		result := metric.Evaluate(trace, gt)
		require.Equal(t, 1.0, result.Scores["final_pass_rate"])

		trace.FinalAnswer = models.Answer{Text: "明天有雨"}
		result = metric.Evaluate(trace, gt)
		require.Equal(t, 0.0, result.Scores["final_pass_rate"])
	})
}

func TestHaversine(t *testing.T) {
	// Tiananmen to Beijing South Railway Station, about 5.2 km.
	dist, ok := coordinateDistance("116.397428,39.90923", "116.378517,39.865246")
	require.True(t, ok)
	require.InDelta(t, 5150, dist, 300)

	_, ok = coordinateDistance("not-a-coordinate", "116.4,39.9")
	require.False(t, ok)
}

// Two of ten cases fail with tool errors: ratio metrics average over
// the eight valid cases and the two excluded pairs are listed.
func TestAggregate_ExplicitExclusions(t *testing.T) {
	engine := newEngine(t)
	gt := goldenTruth()

	var evals []CaseEvaluation
	for i := 0; i < 10; i++ {
		trace := goldenTrace()
		trace.CaseID = fmt.Sprintf("nav-%03d", i)
		if i < 2 {
			trace.Status = models.StatusToolError
			trace.FinalAnswer = models.Answer{}
		}
		key := "gpt-x::" + trace.CaseID
		evals = append(evals, engine.EvaluateCase(key, trace, gt))
	}

	table := Aggregate("run-1", evals)

	require.Equal(t, []string{"gpt-x::nav-000", "gpt-x::nav-001"}, table.Excluded[MetricPlanning])
	require.Equal(t, []string{"gpt-x::nav-000", "gpt-x::nav-001"}, table.Excluded[MetricToolUse])

	// Planning averages over the 8 valid cases only: still 1.0, not
	// diluted by zeros from the failed pair.
	require.Equal(t, 1.0, table.Overall.Scores["planning.precision"])

	// Delivery counts all 10 cases, failures as non-delivered.
	require.InDelta(t, 0.8, table.Overall.Scores["decision_making.delivery_rate"], 1e-9)
	require.InDelta(t, 0.8, table.Overall.Scores["decision_making.final_pass_rate"], 1e-9)

	require.Equal(t, 10, table.Overall.Cases)
	require.NotNil(t, table.Overall.Composite)
	require.LessOrEqual(t, table.Overall.Composite.Lower, table.Overall.Composite.Mean)
	require.LessOrEqual(t, table.Overall.Composite.Mean, table.Overall.Composite.Upper)
}

// A pair that failed without ever persisting a trace still counts
// against delivery instead of vanishing from the table.
func TestAggregate_TracelessFailureCountsAsNonDelivered(t *testing.T) {
	engine := newEngine(t)
	gt := goldenTruth()

	evals := []CaseEvaluation{
		engine.EvaluateCase("gpt-x::nav-001", goldenTrace(), gt),
		engine.EvaluateAbsent("gpt-x::nav-002", "nav-002", "gpt-x", gt),
	}

	table := Aggregate("run-1", evals)

	require.Equal(t, 2, table.Overall.Cases)
	require.InDelta(t, 0.5, table.Overall.Scores["decision_making.delivery_rate"], 1e-9)
	require.InDelta(t, 0.5, table.Overall.Scores["decision_making.final_pass_rate"], 1e-9)

	// Trace-dependent metrics average over the traced case only and the
	// absent pair is listed, not silently dropped.
	require.Equal(t, 1.0, table.Overall.Scores["planning.precision"])
	require.Equal(t, []string{"gpt-x::nav-002"}, table.Excluded[MetricInstruction])
	require.Equal(t, []string{"gpt-x::nav-002"}, table.Excluded[MetricPlanning])
	require.Equal(t, []string{"gpt-x::nav-002"}, table.Excluded[MetricToolUse])

	absent := evals[1]
	require.Equal(t, gt.IntentFamily, absent.IntentFamily)
	passed := absent.Results[MetricDecision].Passed
	require.NotNil(t, passed)
	require.False(t, *passed)
}

func TestAggregate_Grouping(t *testing.T) {
	engine := newEngine(t)

	navTruth := goldenTruth()
	wxTruth := models.GroundTruth{
		CaseID:        "wx-001",
		Intent:        "weather query",
		IntentFamily:  "info-query",
		Steps:         []models.Step{{Tool: "weather_query", Args: map[string]any{"city": "上海"}}},
		RequiredTools: []string{"weather_query"},
		Answer:        models.ExpectedAnswer{Text: "多云转晴"},
		Tolerance:     models.Tolerance{}.WithDefaults(),
	}
	wxTrace := &models.ExecutionTrace{
		CaseID:  "wx-001",
		ModelID: "claude-y",
		ToolCalls: []models.ToolCallRecord{
			{Tool: "weather_query", Args: map[string]any{"city": "上海"}, OK: true},
		},
		Plan:        models.Plan{Intent: "weather query", Steps: []models.Step{{Tool: "weather_query", Args: map[string]any{"city": "上海"}}}},
		FinalAnswer: models.Answer{Text: "多云转晴"},
		Status:      models.StatusCompleted,
	}

	evals := []CaseEvaluation{
		engine.EvaluateCase("gpt-x::nav-001", goldenTrace(), navTruth),
		engine.EvaluateCase("claude-y::wx-001", wxTrace, wxTruth),
	}
	table := Aggregate("run-1", evals)

	require.Len(t, table.ByIntentFamily, 2)
	require.Contains(t, table.ByIntentFamily, "route-planning")
	require.Contains(t, table.ByIntentFamily, "info-query")
	require.Equal(t, 1, table.ByIntentFamily["info-query"].Cases)

	require.Len(t, table.ByModel, 2)
	require.Equal(t, 1.0, table.ByModel["claude-y"].Scores["decision_making.final_pass_rate"])
}

func TestEvaluateRun(t *testing.T) {
	engine := newEngine(t)
	gt := goldenTruth()

	traces := map[string]*models.ExecutionTrace{}
	for i := 0; i < 5; i++ {
		trace := goldenTrace()
		traces[fmt.Sprintf("gpt-x::nav-%03d", i)] = trace
	}

	evals, err := engine.EvaluateRun(traces, mapTruths{"nav-001": gt})
	require.NoError(t, err)
	require.Len(t, evals, 5)
	// Sorted by pair key.
	require.Equal(t, "gpt-x::nav-000", evals[0].Key)
	require.Equal(t, "gpt-x::nav-004", evals[4].Key)

	t.Run("missing ground truth fails", func(t *testing.T) {
		_, err := engine.EvaluateRun(traces, mapTruths{})
		require.ErrorContains(t, err, "no ground truth")
	})
}

type mapTruths map[string]models.GroundTruth

func (m mapTruths) GroundTruth(id string) (models.GroundTruth, bool) {
	gt, ok := m[id]
	return gt, ok
}
