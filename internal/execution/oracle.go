package execution

import (
	"context"
	"fmt"

	"github.com/mobility-bench/mobench/internal/models"
)

// TruthLookup resolves a case to its ground truth. Satisfied by
// *dataset.Source.
type TruthLookup interface {
	GroundTruth(caseID string) (models.GroundTruth, bool)
}

// OracleAgent executes each case's reference tool sequence and finishes
// with the reference answer. It exists to exercise the full pipeline
// end to end: a healthy setup scores it at the ceiling of every metric.
type OracleAgent struct {
	truths TruthLookup
}

// NewOracleAgent builds an oracle over the given ground-truth source.
func NewOracleAgent(truths TruthLookup) *OracleAgent {
	return &OracleAgent{truths: truths}
}

func (a *OracleAgent) Decide(_ context.Context, req *DecideRequest) (*Action, error) {
	gt, ok := a.truths.GroundTruth(req.Case.ID)
	if !ok {
		return nil, fmt.Errorf("no ground truth for case %s", req.Case.ID)
	}

	if req.Step < len(gt.Steps) {
		step := gt.Steps[req.Step]
		return Call(step.Tool, step.Args), nil
	}

	slots := make(map[string]string, len(gt.Constraints))
	for k, v := range gt.Constraints {
		slots[k] = v
	}

	return Finish(FinishAction{
		Answer: models.Answer{
			Text:            gt.Answer.Text,
			DistanceMeters:  gt.Answer.DistanceMeters,
			DurationSeconds: gt.Answer.DurationSeconds,
			Location:        gt.Answer.Location,
		},
		Intent: gt.Intent,
		Slots:  slots,
		Steps:  gt.Steps,
	}), nil
}
