package qualitygate

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
)

// Insights carries business context used to adjust gate strictness for one
// evaluation. Values outside the known vocabulary leave the threshold
// unchanged.
type Insights struct {
	// BusinessContext describes the procurement situation, e.g. "emergency"
	// or "routine".
	BusinessContext string `json:"business_context,omitempty"`

	// Complexity is the assessed item complexity: "low", "standard", or
	// "critical".
	Complexity string `json:"complexity,omitempty"`

	// Urgency mirrors the line item urgency: "low" through "critical".
	Urgency string `json:"urgency,omitempty"`
}

// adjustmentFloor bounds how far contextual adjustment can relax a
// threshold.
const adjustmentFloor = 0.5

// adjustmentFactor combines the individual context multipliers, floored at
// adjustmentFloor so a pile-up of relaxations cannot disable a gate.
func (in Insights) adjustmentFactor() float64 {
	factor := 1.0
	switch in.BusinessContext {
	case "emergency":
		factor *= 0.80
	case "expedited":
		factor *= 0.85
	}
	if in.Complexity == "critical" {
		factor *= 0.90
	}
	if in.Urgency == "critical" {
		factor *= 0.85
	}
	if factor < adjustmentFloor {
		factor = adjustmentFloor
	}
	return factor
}

// EvaluateWithContext gates stage output against a contextually adjusted
// threshold. The adjustment is computed on a per-call snapshot of the active
// threshold; shared evaluator state is never mutated, so concurrent tasks
// may call this freely.
func (e *Evaluator) EvaluateWithContext(ctx context.Context, stage Stage, data any, insights Insights) (*Result, error) {
	var checks []checkResult
	switch stage {
	case StageExtraction:
		d, ok := data.(*lineitem.ExtractionResult)
		if !ok {
			return nil, fmt.Errorf("stage %s requires *lineitem.ExtractionResult, got %T", stage, data)
		}
		checks = extractionChecks(d)
	case StageSearch:
		d, ok := data.(*lineitem.SearchResult)
		if !ok {
			return nil, fmt.Errorf("stage %s requires *lineitem.SearchResult, got %T", stage, data)
		}
		checks = searchChecks(d)
	case StageMatching:
		d, ok := data.(*lineitem.MatchResult)
		if !ok {
			return nil, fmt.Errorf("stage %s requires *lineitem.MatchResult, got %T", stage, data)
		}
		checks = matchingChecks(d)
	default:
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}

	adjusted := e.threshold(stage) * insights.adjustmentFactor()
	return e.evaluate(ctx, stage, adjusted, checks), nil
}
