// Package dataset loads benchmark cases and their ground truth from
// JSON, YAML, or CSV files.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mobility-bench/mobench/internal/models"
)

// Record is one dataset row: a case bundled with its ground truth,
// the shape datasets are authored in.
type Record struct {
	models.Case `yaml:",inline"`
	GroundTruth models.GroundTruth `yaml:"ground_truth" json:"ground_truth"`
}

// Source is an immutable loaded dataset.
type Source struct {
	ref    string
	cases  []models.Case
	truths map[string]models.GroundTruth
}

// Load reads a dataset file, dispatching on extension.
func Load(path string) (*Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return loadJSON(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, fmt.Errorf("dataset: unsupported file format %q", ext)
	}
}

func loadJSON(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}

	return fromRecords(path, records)
}

func loadYAML(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}

	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}

	return fromRecords(path, records)
}

// FromRecords builds a Source from already-decoded records. Tests and
// in-memory datasets use this directly.
func FromRecords(ref string, records []Record) (*Source, error) {
	return fromRecords(ref, records)
}

func fromRecords(ref string, records []Record) (*Source, error) {
	s := &Source{
		ref:    ref,
		cases:  make([]models.Case, 0, len(records)),
		truths: make(map[string]models.GroundTruth, len(records)),
	}

	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("dataset: record %d has no case_id", i+1)
		}
		if _, dup := s.truths[rec.ID]; dup {
			return nil, fmt.Errorf("dataset: duplicate case_id %q", rec.ID)
		}

		gt := rec.GroundTruth
		gt.CaseID = rec.ID
		gt.Tolerance = gt.Tolerance.WithDefaults()

		s.cases = append(s.cases, rec.Case)
		s.truths[rec.ID] = gt
	}

	return s, nil
}

// Ref returns the path (or label) this dataset was loaded from.
func (s *Source) Ref() string { return s.ref }

// Len returns the number of cases.
func (s *Source) Len() int { return len(s.cases) }

// Cases returns the cases in load order.
func (s *Source) Cases() []models.Case {
	out := make([]models.Case, len(s.cases))
	copy(out, s.cases)
	return out
}

// CaseIDs returns all case ids, sorted.
func (s *Source) CaseIDs() []string {
	ids := make([]string, 0, len(s.cases))
	for _, c := range s.cases {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}

// Case looks up a single case by id.
func (s *Source) Case(caseID string) (models.Case, bool) {
	for _, c := range s.cases {
		if c.ID == caseID {
			return c, true
		}
	}
	return models.Case{}, false
}

// GroundTruth looks up the ground truth for a case.
func (s *Source) GroundTruth(caseID string) (models.GroundTruth, bool) {
	gt, ok := s.truths[caseID]
	return gt, ok
}
