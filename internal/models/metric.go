package models

import (
	"encoding/json"
	"time"
)

// MetricResult is the output of one metric module for one case.
type MetricResult struct {
	Metric string `json:"metric"`
	// Scores maps sub-dimension name to numeric score. Ratio sub-scores
	// are always in [0, 1]; efficiency sub-scores are raw counts.
	Scores map[string]float64 `json:"scores,omitempty"`
	// Passed is set only for metrics with a pass/fail notion.
	Passed *bool `json:"passed,omitempty"`
	// NotApplicable marks a result that could not be computed for this
	// trace (e.g. the execution never produced a plan). Aggregation
	// excludes such results explicitly instead of averaging zeros.
	NotApplicable bool   `json:"not_applicable,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// NA builds a not-applicable result with an explanation.
func NA(metric, reason string) MetricResult {
	return MetricResult{Metric: metric, NotApplicable: true, Reason: reason}
}

// CacheEntry is one recorded tool call in the replay cache, keyed by its
// fingerprint. Re-recording the same fingerprint overwrites the entry
// (last write wins).
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Tool        string          `json:"tool"`
	Args        map[string]any  `json:"args,omitempty"`
	Response    json.RawMessage `json:"response"`
	RecordedAt  time.Time       `json:"recorded_at"`
}
