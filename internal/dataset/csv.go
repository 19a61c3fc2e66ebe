package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mobility-bench/mobench/internal/models"
)

// loadCSV reads a CSV dataset. The first row holds column names.
// Recognized columns:
//
//	case_id, query, intent, intent_family  plain strings
//	context, constraints                   JSON objects of string values
//	steps                                  JSON array of {tool, args}
//	required_tools                         semicolon-separated list
//	answer_text, answer_location           plain strings
//	answer_distance_m, answer_duration_s   numbers
//
// Unknown columns are ignored so exported spreadsheets round-trip.
func loadCSV(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: %s is empty (no header row)", path)
	}

	headers := rows[0]
	records := make([]Record, 0, len(rows)-1)

	for i, row := range rows[1:] {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("dataset: %s row %d has %d columns, expected %d", path, i+2, len(row), len(headers))
		}

		cols := make(map[string]string, len(headers))
		for j, h := range headers {
			cols[strings.TrimSpace(h)] = row[j]
		}

		rec, err := rowToRecord(cols)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s row %d: %w", path, i+2, err)
		}
		records = append(records, rec)
	}

	return fromRecords(path, records)
}

func rowToRecord(cols map[string]string) (Record, error) {
	rec := Record{
		Case: models.Case{
			ID:    cols["case_id"],
			Query: cols["query"],
		},
		GroundTruth: models.GroundTruth{
			Intent:       cols["intent"],
			IntentFamily: cols["intent_family"],
			Answer: models.ExpectedAnswer{
				Text:     cols["answer_text"],
				Location: cols["answer_location"],
			},
		},
	}

	if raw := cols["context"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Context); err != nil {
			return rec, fmt.Errorf("context column: %w", err)
		}
	}
	if raw := cols["constraints"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.GroundTruth.Constraints); err != nil {
			return rec, fmt.Errorf("constraints column: %w", err)
		}
	}
	if raw := cols["steps"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.GroundTruth.Steps); err != nil {
			return rec, fmt.Errorf("steps column: %w", err)
		}
	}
	if raw := cols["required_tools"]; raw != "" {
		for _, tool := range strings.Split(raw, ";") {
			if tool = strings.TrimSpace(tool); tool != "" {
				rec.GroundTruth.RequiredTools = append(rec.GroundTruth.RequiredTools, tool)
			}
		}
	}

	var err error
	if rec.GroundTruth.Answer.DistanceMeters, err = parseOptionalFloat(cols["answer_distance_m"]); err != nil {
		return rec, fmt.Errorf("answer_distance_m column: %w", err)
	}
	if rec.GroundTruth.Answer.DurationSeconds, err = parseOptionalFloat(cols["answer_duration_s"]); err != nil {
		return rec, fmt.Errorf("answer_duration_s column: %w", err)
	}

	return rec, nil
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
