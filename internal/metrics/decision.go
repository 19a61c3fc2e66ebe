package metrics

import (
	"math"
	"strconv"
	"strings"

	"github.com/mobility-bench/mobench/internal/models"
)

// decisionMetric scores the end result: did the agent deliver an answer
// at all, and does the answer satisfy every ground-truth expectation
// within tolerance. Computed for every trace, including failed ones,
// which score zero on both sub-dimensions.
type decisionMetric struct{}

func (m *decisionMetric) Name() string { return MetricDecision }

func (m *decisionMetric) Evaluate(trace *models.ExecutionTrace, gt models.GroundTruth) models.MetricResult {
	delivered := trace.Delivered()

	pass := delivered && answerWithinTolerance(trace.FinalAnswer, gt.Answer, gt.Tolerance)

	scores := map[string]float64{"delivery_rate": 0, "final_pass_rate": 0}
	if delivered {
		scores["delivery_rate"] = 1
	}
	if pass {
		scores["final_pass_rate"] = 1
	}

	return models.MetricResult{
		Metric: MetricDecision,
		Scores: scores,
		Passed: &pass,
	}
}

// answerWithinTolerance checks each expectation the ground truth
// actually sets; unset reference fields constrain nothing.
func answerWithinTolerance(got models.Answer, want models.ExpectedAnswer, tol models.Tolerance) bool {
	tol = tol.WithDefaults()

	if want.DistanceMeters > 0 {
		if math.Abs(got.DistanceMeters-want.DistanceMeters) > tol.DistanceMeters {
			return false
		}
	}
	if want.DurationSeconds > 0 {
		if math.Abs(got.DurationSeconds-want.DurationSeconds) > tol.TimeFraction*want.DurationSeconds {
			return false
		}
	}
	if want.Location != "" {
		dist, ok := coordinateDistance(got.Location, want.Location)
		if !ok || dist > tol.CoordinateMeters {
			return false
		}
	}
	if want.Text != "" {
		if similarity(got.Text, want.Text) < tol.Similarity {
			return false
		}
	}
	return true
}

// coordinateDistance returns the great-circle distance in meters
// between two "lon,lat" strings.
func coordinateDistance(a, b string) (float64, bool) {
	lonA, latA, okA := parseCoordinate(a)
	lonB, latB, okB := parseCoordinate(b)
	if !okA || !okB {
		return 0, false
	}
	return haversine(latA, lonA, latB, lonB), true
}

func parseCoordinate(s string) (lon, lat float64, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

const earthRadiusMeters = 6371000

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
