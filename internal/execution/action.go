package execution

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/tools"
)

// ActionKind discriminates the two things an agent can do at a step.
type ActionKind string

const (
	ActionCallTool ActionKind = "call_tool"
	ActionFinish   ActionKind = "finish"
)

// Action is the agent's decision for one step. Exactly one of CallTool
// and Finish is set, matching Kind.
type Action struct {
	Kind     ActionKind      `mapstructure:"kind"`
	CallTool *CallToolAction `mapstructure:"call_tool"`
	Finish   *FinishAction   `mapstructure:"finish"`

	// Token usage attributed to producing this decision.
	TokensIn  int `mapstructure:"tokens_in"`
	TokensOut int `mapstructure:"tokens_out"`
}

// CallToolAction names a tool and the argument mapping to call it with.
type CallToolAction struct {
	Name string         `mapstructure:"name"`
	Args map[string]any `mapstructure:"args"`
}

// FinishAction ends the case with a final answer and the agent's own
// account of its plan.
type FinishAction struct {
	Answer models.Answer     `mapstructure:"answer"`
	Intent string            `mapstructure:"intent"`
	Slots  map[string]string `mapstructure:"slots"`
	Steps  []models.Step     `mapstructure:"steps"`
}

// ParseAction decodes a loosely-typed action mapping, as produced by a
// framework adapter, into an Action. Shape violations come back as a
// *tools.SchemaViolationError so callers can score them rather than
// crash on them.
func ParseAction(raw map[string]any) (*Action, error) {
	var action Action
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &action,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("execution: building action decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, &tools.SchemaViolationError{Tool: "action", Violations: []string{err.Error()}}
	}
	if err := action.validate(); err != nil {
		return nil, err
	}
	return &action, nil
}

func (a *Action) validate() error {
	switch a.Kind {
	case ActionCallTool:
		if a.CallTool == nil || a.CallTool.Name == "" {
			return &tools.SchemaViolationError{Tool: "action", Violations: []string{"call_tool action missing tool name"}}
		}
		if a.Finish != nil {
			return &tools.SchemaViolationError{Tool: "action", Violations: []string{"call_tool action carries a finish payload"}}
		}
	case ActionFinish:
		if a.Finish == nil {
			return &tools.SchemaViolationError{Tool: "action", Violations: []string{"finish action missing payload"}}
		}
		if a.CallTool != nil {
			return &tools.SchemaViolationError{Tool: "action", Violations: []string{"finish action carries a call_tool payload"}}
		}
	default:
		return &tools.SchemaViolationError{Tool: "action", Violations: []string{fmt.Sprintf("unknown action kind %q", a.Kind)}}
	}
	return nil
}
