package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/mobility-bench/mobench/internal/models"
)

// ScriptedAgent replays a fixed sequence of actions, one per step. It
// backs tests and dry runs where the decision policy itself is not
// under study.
type ScriptedAgent struct {
	mu      sync.Mutex
	actions []*Action
	step    int
}

// NewScriptedAgent builds an agent that will return the given actions
// in order.
func NewScriptedAgent(actions ...*Action) *ScriptedAgent {
	return &ScriptedAgent{actions: actions}
}

func (a *ScriptedAgent) Decide(_ context.Context, _ *DecideRequest) (*Action, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.step >= len(a.actions) {
		return nil, fmt.Errorf("script exhausted after %d actions", len(a.actions))
	}
	action := a.actions[a.step]
	a.step++
	return action, nil
}

// Call builds a call_tool action.
func Call(name string, args map[string]any) *Action {
	return &Action{
		Kind:     ActionCallTool,
		CallTool: &CallToolAction{Name: name, Args: args},
	}
}

// Finish builds a finish action.
func Finish(finish FinishAction) *Action {
	return &Action{Kind: ActionFinish, Finish: &finish}
}

// FinishText builds a finish action with a plain text answer.
func FinishText(text string) *Action {
	return Finish(FinishAction{Answer: models.Answer{Text: text}})
}
