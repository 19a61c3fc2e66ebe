package models

import (
	"encoding/json"
	"time"
)

// Status is the terminal status of one agent execution attempt.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusToolError Status = "tool_error"
	StatusMaxSteps  Status = "max_steps_exceeded"
	StatusCrashed   Status = "crashed"
)

// ToolCallRecord captures one mediated tool call inside a trace.
type ToolCallRecord struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
	// Result is the raw response payload as served by the replay cache
	// (or an error payload when OK is false).
	Result json.RawMessage `json:"result,omitempty"`
	OK     bool            `json:"ok"`
	// OffsetMs is the call's offset from the start of the execution.
	OffsetMs int64 `json:"offset_ms"`
}

// Plan holds the intermediate reasoning artifacts the agent surfaced:
// its understood intent, extracted constraint slots, and decomposed steps.
type Plan struct {
	Intent string            `json:"intent,omitempty"`
	Slots  map[string]string `json:"slots,omitempty"`
	Steps  []Step            `json:"steps,omitempty"`
}

// Answer is the agent's final structured answer. Text is always the
// user-facing payload; the numeric fields are populated when the agent
// produced a route or distance result.
type Answer struct {
	Text            string  `json:"text"`
	DistanceMeters  float64 `json:"distance_meters,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Location        string  `json:"location,omitempty"`
}

// Empty reports whether the answer carries no payload at all.
func (a Answer) Empty() bool {
	return a.Text == "" && a.DistanceMeters == 0 && a.DurationSeconds == 0 && a.Location == ""
}

// ExecutionTrace is the complete record of one (model, case) execution
// attempt. Traces are immutable once finalized by the executor.
type ExecutionTrace struct {
	CaseID      string `json:"case_id"`
	ModelID     string `json:"model_id"`
	FrameworkID string `json:"framework_id"`

	ToolCalls   []ToolCallRecord `json:"tool_calls"`
	Plan        Plan             `json:"plan"`
	FinalAnswer Answer           `json:"final_answer"`

	TokensIn   int   `json:"tokens_in"`
	TokensOut  int   `json:"tokens_out"`
	DurationMs int64 `json:"duration_ms"`

	Status Status `json:"status"`
	// Error holds the failure description when Status != completed.
	Error string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// ToolNames returns the tool name of each call, in call order.
func (t *ExecutionTrace) ToolNames() []string {
	names := make([]string, 0, len(t.ToolCalls))
	for _, call := range t.ToolCalls {
		names = append(names, call.Tool)
	}
	return names
}

// Delivered reports whether the execution completed with a non-empty
// final answer.
func (t *ExecutionTrace) Delivered() bool {
	return t.Status == StatusCompleted && !t.FinalAnswer.Empty()
}
