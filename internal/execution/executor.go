package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/tools"
)

// Default budgets for a single case.
const (
	DefaultMaxSteps = 10
	DefaultTimeout  = 300 * time.Second
)

// Budgets bounds one case execution. Zero values take the defaults.
type Budgets struct {
	MaxSteps int
	Timeout  time.Duration
}

func (b Budgets) withDefaults() Budgets {
	if b.MaxSteps <= 0 {
		b.MaxSteps = DefaultMaxSteps
	}
	if b.Timeout <= 0 {
		b.Timeout = DefaultTimeout
	}
	return b
}

// ToolBackend resolves tool calls to responses. Satisfied by
// *replay.Cache in both live and sandbox modes.
type ToolBackend interface {
	LookupOrRecord(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error)
}

// Executor runs one agent against one case at a time and always
// produces a trace: agent failures become trace statuses, never
// returned errors.
type Executor struct {
	agent   Agent
	catalog *tools.Catalog
	backend ToolBackend
	budgets Budgets
	logger  *slog.Logger
}

// NewExecutor builds an executor for the given agent.
func NewExecutor(agent Agent, catalog *tools.Catalog, backend ToolBackend, budgets Budgets, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		agent:   agent,
		catalog: catalog,
		backend: backend,
		budgets: budgets.withDefaults(),
		logger:  logger,
	}
}

// Execute drives the agent through the case until it finishes, errors,
// or exhausts a budget. The returned trace always has a terminal
// status; a panicking agent yields a crashed trace.
func (e *Executor) Execute(ctx context.Context, c *models.Case, modelID, frameworkID string) *models.ExecutionTrace {
	start := time.Now()
	trace := &models.ExecutionTrace{
		CaseID:      c.ID,
		ModelID:     modelID,
		FrameworkID: frameworkID,
		StartedAt:   start.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, e.budgets.Timeout)
	defer cancel()

	func() {
		defer func() {
			if r := recover(); r != nil {
				trace.Status = models.StatusCrashed
				trace.Error = fmt.Sprintf("agent panicked: %v", r)
				e.logger.Error("agent panicked", "case", c.ID, "model", modelID, "panic", r)
			}
		}()
		e.run(ctx, c, trace, start)
	}()

	trace.DurationMs = time.Since(start).Milliseconds()
	return trace
}

func (e *Executor) run(ctx context.Context, c *models.Case, trace *models.ExecutionTrace, start time.Time) {
	var observations []Observation

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			trace.Status = models.StatusMaxSteps
			trace.Error = fmt.Sprintf("time budget exhausted after %d steps", step)
			return
		}
		if step >= e.budgets.MaxSteps {
			trace.Status = models.StatusMaxSteps
			trace.Error = fmt.Sprintf("step budget of %d exhausted", e.budgets.MaxSteps)
			return
		}

		action, err := e.agent.Decide(ctx, &DecideRequest{
			Case:         c,
			Step:         step,
			Observations: observations,
		})
		if err != nil {
			trace.Status = models.StatusCrashed
			trace.Error = fmt.Sprintf("agent decision failed at step %d: %v", step, err)
			return
		}
		if err := action.validate(); err != nil {
			trace.Status = models.StatusCrashed
			trace.Error = fmt.Sprintf("agent returned malformed action at step %d: %v", step, err)
			return
		}

		trace.TokensIn += action.TokensIn
		trace.TokensOut += action.TokensOut

		if action.Kind == ActionFinish {
			trace.Plan = models.Plan{
				Intent: action.Finish.Intent,
				Slots:  action.Finish.Slots,
				Steps:  action.Finish.Steps,
			}
			trace.FinalAnswer = action.Finish.Answer
			trace.Status = models.StatusCompleted
			return
		}

		call := action.CallTool
		record := models.ToolCallRecord{
			Tool:     call.Name,
			Args:     call.Args,
			OffsetMs: time.Since(start).Milliseconds(),
		}

		if err := e.catalog.Validate(call.Name, call.Args); err != nil {
			if tools.IsSchemaViolation(err) {
				// Non-fatal: the agent sees the rejection and may
				// re-plan. The compliance metric scores the failure.
				e.logger.Debug("tool arguments rejected", "case", c.ID, "tool", call.Name, "error", err)
				trace.ToolCalls = append(trace.ToolCalls, record)
				observations = append(observations, Observation{Tool: call.Name, Args: call.Args, Err: err.Error()})
				continue
			}
			trace.ToolCalls = append(trace.ToolCalls, record)
			trace.Status = models.StatusToolError
			trace.Error = err.Error()
			return
		}

		result, err := e.backend.LookupOrRecord(ctx, call.Name, call.Args)
		if err != nil {
			trace.ToolCalls = append(trace.ToolCalls, record)
			if ctx.Err() != nil {
				trace.Status = models.StatusMaxSteps
				trace.Error = fmt.Sprintf("time budget exhausted during %s call", call.Name)
				return
			}
			trace.Status = models.StatusToolError
			trace.Error = err.Error()
			return
		}

		record.Result = result
		record.OK = true
		trace.ToolCalls = append(trace.ToolCalls, record)
		observations = append(observations, Observation{Tool: call.Name, Args: call.Args, Result: result})
	}
}
