// Package models holds the data schema shared across the benchmark
// pipeline: cases, ground truth, execution traces, run manifests, and
// metric results.
package models

// Case is one benchmark query plus its structured context. Cases are
// immutable once loaded from a dataset.
type Case struct {
	ID      string            `yaml:"case_id" json:"case_id"`
	Query   string            `yaml:"query" json:"query"`
	Context map[string]string `yaml:"context,omitempty" json:"context,omitempty"`

	// KnownLocations carries pre-resolved coordinates the case may
	// reference, so scoring does not depend on live geocoding.
	KnownLocations []KnownLocation `yaml:"known_locations,omitempty" json:"known_locations,omitempty"`
}

// KnownLocation is a named coordinate in "longitude,latitude" form.
type KnownLocation struct {
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location" json:"location"`
}

// Step is one atomic action: a tool name plus the arguments it should be
// (or was) called with. Ground truth uses it for the expected step
// sequence; traces use it for the agent's declared plan.
type Step struct {
	Tool string         `yaml:"tool" json:"tool"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// ExpectedAnswer is the reference final answer for a case. Zero-valued
// fields are not checked.
type ExpectedAnswer struct {
	Text            string  `yaml:"text,omitempty" json:"text,omitempty"`
	DistanceMeters  float64 `yaml:"distance_meters,omitempty" json:"distance_meters,omitempty"`
	DurationSeconds float64 `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	// Location is the expected destination coordinate, "longitude,latitude".
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
}

// Tolerance bounds how far a delivered answer may deviate from the
// expected one and still pass.
type Tolerance struct {
	DistanceMeters   float64 `yaml:"distance_meters,omitempty" json:"distance_meters,omitempty"`
	CoordinateMeters float64 `yaml:"coordinate_meters,omitempty" json:"coordinate_meters,omitempty"`
	// TimeFraction is a relative tolerance on duration, e.g. 0.1 for ±10%.
	TimeFraction float64 `yaml:"time_fraction,omitempty" json:"time_fraction,omitempty"`
	// Similarity is the minimum textual similarity for free-text answers.
	Similarity float64 `yaml:"similarity,omitempty" json:"similarity,omitempty"`
}

// Default tolerance values, applied by [Tolerance.WithDefaults] when a
// dataset leaves a field unset.
const (
	DefaultDistanceToleranceMeters   = 50.0
	DefaultCoordinateToleranceMeters = 50.0
	DefaultTimeToleranceFraction     = 0.1
	DefaultSimilarityThreshold       = 0.8
)

// WithDefaults returns a copy with unset fields replaced by defaults.
func (t Tolerance) WithDefaults() Tolerance {
	if t.DistanceMeters <= 0 {
		t.DistanceMeters = DefaultDistanceToleranceMeters
	}
	if t.CoordinateMeters <= 0 {
		t.CoordinateMeters = DefaultCoordinateToleranceMeters
	}
	if t.TimeFraction <= 0 {
		t.TimeFraction = DefaultTimeToleranceFraction
	}
	if t.Similarity <= 0 {
		t.Similarity = DefaultSimilarityThreshold
	}
	return t
}

// GroundTruth is the reference record used to score one case.
type GroundTruth struct {
	CaseID string `yaml:"case_id" json:"case_id"`

	// Intent is the expected intent label from the fixed label set;
	// IntentFamily is the coarse category used for grouped aggregation.
	Intent       string `yaml:"intent" json:"intent"`
	IntentFamily string `yaml:"intent_family" json:"intent_family"`

	// Constraints are the slots the agent must extract from the query,
	// e.g. origin/destination POIs or a city name.
	Constraints map[string]string `yaml:"constraints,omitempty" json:"constraints,omitempty"`

	// Steps is the expected ordered sequence of atomic actions.
	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`

	// RequiredTools is the set of tools a correct solution must call.
	RequiredTools []string `yaml:"required_tools,omitempty" json:"required_tools,omitempty"`

	Answer    ExpectedAnswer `yaml:"answer,omitempty" json:"answer,omitempty"`
	Tolerance Tolerance      `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}
