// Package execution drives a single agent through a single benchmark
// case. The agent is modeled as a stepwise decision function that
// suspends at every tool-call boundary, so the executor owns the loop,
// the budgets, and the trace.
package execution

import (
	"context"
	"encoding/json"

	"github.com/mobility-bench/mobench/internal/models"
)

// Agent is the interface a model-under-test adapter implements. Decide
// is called once per step with everything observed so far and returns
// the next action: call a tool or finish with an answer.
type Agent interface {
	Decide(ctx context.Context, req *DecideRequest) (*Action, error)
}

// DecideRequest carries the case under execution and all tool
// observations made so far, in call order.
type DecideRequest struct {
	Case         *models.Case
	Step         int
	Observations []Observation
}

// Observation is the outcome of one earlier tool call, as presented
// back to the agent. Failed calls carry the error text instead of a
// result so the agent can recover or re-plan.
type Observation struct {
	Tool   string
	Args   map[string]any
	Result json.RawMessage
	Err    string
}
