package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobility-bench/mobench/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "cases.json", `[
		{
			"case_id": "nav-001",
			"query": "从天安门到北京南站怎么开车",
			"context": {"city": "北京"},
			"ground_truth": {
				"intent": "driving route planning",
				"intent_family": "route-planning",
				"constraints": {"origin": "天安门", "destination": "北京南站"},
				"steps": [
					{"tool": "query_poi", "args": {"keywords": "天安门", "city": "北京"}},
					{"tool": "driving_route", "args": {"origin": "116.397,39.908", "destination": "116.378,39.865"}}
				],
				"required_tools": ["query_poi", "driving_route"],
				"answer": {"distance_meters": 8200, "duration_seconds": 1500},
				"tolerance": {"distance_meters": 50}
			}
		}
	]`)

	src, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, src.Len())
	require.Equal(t, []string{"nav-001"}, src.CaseIDs())

	gt, ok := src.GroundTruth("nav-001")
	require.True(t, ok)
	require.Equal(t, "nav-001", gt.CaseID)
	require.Len(t, gt.Steps, 2)
	require.Equal(t, "query_poi", gt.Steps[0].Tool)

	// Unset tolerance fields get defaults; set ones are kept.
	require.Equal(t, 50.0, gt.Tolerance.DistanceMeters)
	require.Equal(t, models.DefaultTimeToleranceFraction, gt.Tolerance.TimeFraction)
	require.Equal(t, models.DefaultSimilarityThreshold, gt.Tolerance.Similarity)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "cases.yaml", `
- case_id: wx-001
  query: 上海明天天气怎么样
  ground_truth:
    intent: weather query
    intent_family: info-query
    constraints:
      city: 上海
    required_tools: [weather_query]
    answer:
      text: 多云转晴
`)

	src, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, src.Len())

	gt, ok := src.GroundTruth("wx-001")
	require.True(t, ok)
	require.Equal(t, "info-query", gt.IntentFamily)
	require.Equal(t, []string{"weather_query"}, gt.RequiredTools)
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "cases.csv",
		"case_id,query,intent,intent_family,constraints,steps,required_tools,answer_distance_m,answer_duration_s\n"+
			`tr-001,去机场多远,distance query,info-query,"{""destination"":""机场""}","[{""tool"":""driving_route"",""args"":{}}]",query_poi;driving_route,32000,2400`+"\n")

	src, err := Load(path)
	require.NoError(t, err)

	gt, ok := src.GroundTruth("tr-001")
	require.True(t, ok)
	require.Equal(t, []string{"query_poi", "driving_route"}, gt.RequiredTools)
	require.Equal(t, 32000.0, gt.Answer.DistanceMeters)
	require.Equal(t, "机场", gt.Constraints["destination"])
	require.Len(t, gt.Steps, 1)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load("cases.xlsx")
		require.ErrorContains(t, err, "unsupported file format")
	})

	t.Run("missing case_id", func(t *testing.T) {
		path := writeFile(t, "bad.json", `[{"query": "q"}]`)
		_, err := Load(path)
		require.ErrorContains(t, err, "no case_id")
	})

	t.Run("duplicate case_id", func(t *testing.T) {
		path := writeFile(t, "dup.json", `[{"case_id":"a","query":"q"},{"case_id":"a","query":"q2"}]`)
		_, err := Load(path)
		require.ErrorContains(t, err, "duplicate case_id")
	})

	t.Run("ragged csv row", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "case_id,query\na\n")
		_, err := Load(path)
		require.Error(t, err)
	})
}
