package models

import (
	"fmt"
	"time"
)

// PairStatus tracks one (model, case) pair through a run.
type PairStatus string

const (
	PairPending   PairStatus = "pending"
	PairRunning   PairStatus = "running"
	PairCompleted PairStatus = "completed"
	PairFailed    PairStatus = "failed"
)

// FailureClass categorizes why a pair exhausted its retries.
type FailureClass string

const (
	FailureToolError   FailureClass = "tool_error"
	FailureTimeout     FailureClass = "timeout"
	FailureCrash       FailureClass = "crash"
	FailurePersistence FailureClass = "persistence"
)

// PairState is the manifest entry for one (model, case) pair.
//
// A pair may only be marked completed once its trace has been durably
// persisted; TracePath records where. The batch runner enforces the
// write-then-commit ordering.
type PairState struct {
	ModelID      string       `json:"model_id"`
	CaseID       string       `json:"case_id"`
	Status       PairStatus   `json:"status"`
	Attempts     int          `json:"attempts,omitempty"`
	FailureClass FailureClass `json:"failure_class,omitempty"`
	TracePath    string       `json:"trace_path,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty"`
}

// Progress is a live snapshot of per-pair statuses.
type Progress struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// RunManifest tracks one benchmark run: which models ran against which
// dataset, and the status of every (model, case) pair. It is mutated
// incrementally and persisted after every transition so a run can resume.
type RunManifest struct {
	RunID      string               `json:"run_id"`
	Models     []string             `json:"models"`
	DatasetRef string               `json:"dataset_ref"`
	CreatedAt  time.Time            `json:"created_at"`
	Pairs      map[string]PairState `json:"pairs"`
}

// NewRunManifest seeds a manifest with every (model, case) pair pending.
func NewRunManifest(runID, datasetRef string, modelIDs, caseIDs []string) *RunManifest {
	m := &RunManifest{
		RunID:      runID,
		Models:     append([]string(nil), modelIDs...),
		DatasetRef: datasetRef,
		CreatedAt:  time.Now().UTC(),
		Pairs:      make(map[string]PairState, len(modelIDs)*len(caseIDs)),
	}
	for _, model := range modelIDs {
		for _, caseID := range caseIDs {
			key := PairKey(model, caseID)
			m.Pairs[key] = PairState{
				ModelID: model,
				CaseID:  caseID,
				Status:  PairPending,
			}
		}
	}
	return m
}

// PairKey is the manifest map key for a (model, case) pair.
func PairKey(modelID, caseID string) string {
	return fmt.Sprintf("%s::%s", modelID, caseID)
}

// IsComplete reports whether the pair finished with a persisted trace.
func (m *RunManifest) IsComplete(modelID, caseID string) bool {
	state, ok := m.Pairs[PairKey(modelID, caseID)]
	return ok && state.Status == PairCompleted && state.TracePath != ""
}

// AllComplete reports whether every pair is completed or failed,
// i.e. a re-run with resume enabled would do no work.
func (m *RunManifest) AllComplete() bool {
	for _, state := range m.Pairs {
		if state.Status != PairCompleted && state.Status != PairFailed {
			return false
		}
	}
	return true
}

// Counts returns the current progress snapshot.
func (m *RunManifest) Counts() Progress {
	var p Progress
	for _, state := range m.Pairs {
		switch state.Status {
		case PairRunning:
			p.Running++
		case PairCompleted:
			p.Completed++
		case PairFailed:
			p.Failed++
		default:
			p.Pending++
		}
	}
	return p
}
