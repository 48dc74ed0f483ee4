// Package qualitygate scores pipeline stage output against weighted
// sub-checks and per-stage thresholds. A gate failure is a normal
// control-flow result, not an error; it is routed into failure analysis and
// retry selection by the pipeline.
package qualitygate

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
)

const instrumentationName = "github.com/fyrsmithlabs/matchd/internal/qualitygate"

// Evaluator gates stage output against the thresholds of its profile.
//
// EvaluateWithContext never mutates shared threshold state: contextual
// adjustment is computed on a per-call snapshot. The explicit
// AdjustThreshold / RestoreOriginalThresholds surface mutates the active
// thresholds under a mutex and restores the exact original values.
type Evaluator struct {
	logger *zap.Logger

	tracer      trace.Tracer
	meter       metric.Meter
	gateCounter metric.Int64Counter

	mu         sync.Mutex
	profile    Profile
	thresholds map[Stage]float64
	originals  map[Stage]float64
	stats      map[Stage]*stageStats
}

type stageStats struct {
	evaluations int
	passed      int
	scoreSum    float64
}

// NewEvaluator creates an evaluator for the given profile. Invalid profiles,
// non-monotone profile tables, and sub-check weights that do not sum to 1
// are rejected here, not at evaluation time.
func NewEvaluator(profile Profile, logger *zap.Logger) (*Evaluator, error) {
	if err := validateProfiles(); err != nil {
		return nil, fmt.Errorf("invalid profile table: %w", err)
	}
	if err := validateWeights(); err != nil {
		return nil, fmt.Errorf("invalid sub-check weights: %w", err)
	}
	thresholds, err := profile.Thresholds()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	originals := make(map[Stage]float64, len(thresholds))
	for stage, t := range thresholds {
		originals[stage] = t
	}

	e := &Evaluator{
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		profile:    profile,
		thresholds: thresholds,
		originals:  originals,
		stats:      make(map[Stage]*stageStats),
	}

	e.gateCounter, err = e.meter.Int64Counter(
		"matchd.qualitygate.evaluations_total",
		metric.WithDescription("Total number of quality gate evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		logger.Warn("failed to create gate counter", zap.Error(err))
	}

	return e, nil
}

// Profile returns the profile the evaluator was constructed with.
func (e *Evaluator) Profile() Profile {
	return e.profile
}

// ValidateExtraction gates the output of the extraction stage.
func (e *Evaluator) ValidateExtraction(ctx context.Context, data *lineitem.ExtractionResult) *Result {
	return e.evaluate(ctx, StageExtraction, e.threshold(StageExtraction), extractionChecks(data))
}

// ValidateSearch gates the output of the candidate search stage.
func (e *Evaluator) ValidateSearch(ctx context.Context, data *lineitem.SearchResult) *Result {
	return e.evaluate(ctx, StageSearch, e.threshold(StageSearch), searchChecks(data))
}

// ValidateMatch gates the output of the match selection stage.
func (e *Evaluator) ValidateMatch(ctx context.Context, data *lineitem.MatchResult) *Result {
	return e.evaluate(ctx, StageMatching, e.threshold(StageMatching), matchingChecks(data))
}

// AdjustThreshold overrides the active threshold for one stage. The original
// value is retained and can be restored with RestoreOriginalThresholds.
// Callers sharing one evaluator across tasks must serialize adjust/restore
// pairs; concurrent tasks should use EvaluateWithContext instead, which
// never touches this state.
func (e *Evaluator) AdjustThreshold(stage Stage, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("threshold %f out of [0,1]", value)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.thresholds[stage]; !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	e.thresholds[stage] = value
	return nil
}

// RestoreOriginalThresholds resets every stage threshold to the exact value
// it had at construction.
func (e *Evaluator) RestoreOriginalThresholds() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for stage, t := range e.originals {
		e.thresholds[stage] = t
	}
}

// GetStatistics returns a snapshot of per-stage evaluation counts, pass
// rates, and mean scores.
func (e *Evaluator) GetStatistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := Statistics{Stages: make(map[Stage]StageStatistics, len(e.stats))}
	for stage, s := range e.stats {
		st := StageStatistics{
			Evaluations: s.evaluations,
			Passed:      s.passed,
		}
		if s.evaluations > 0 {
			st.PassRate = float64(s.passed) / float64(s.evaluations)
			st.MeanScore = s.scoreSum / float64(s.evaluations)
		}
		out.Stages[stage] = st
	}
	return out
}

func (e *Evaluator) threshold(stage Stage) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds[stage]
}

// evaluate combines sub-check results into a gate result against the given
// threshold and records statistics.
func (e *Evaluator) evaluate(ctx context.Context, stage Stage, threshold float64, checks []checkResult) *Result {
	ctx, span := e.tracer.Start(ctx, "qualitygate.evaluate")
	defer span.End()

	result := &Result{
		Stage:     stage,
		Threshold: threshold,
	}

	for _, c := range checks {
		result.Score += c.score * c.weight
		result.Issues = append(result.Issues, c.issues...)
		result.Warnings = append(result.Warnings, c.warnings...)
		result.Recommendations = append(result.Recommendations, c.recommendations...)
	}
	result.Score = clamp01(result.Score)
	result.Passed = result.Score >= threshold
	result.Confidence = ConfidenceForScore(result.Score)

	span.SetAttributes(
		attribute.String("stage", string(stage)),
		attribute.Float64("score", result.Score),
		attribute.Float64("threshold", threshold),
		attribute.Bool("passed", result.Passed),
	)
	if e.gateCounter != nil {
		e.gateCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.Bool("passed", result.Passed),
		))
	}

	e.mu.Lock()
	s, ok := e.stats[stage]
	if !ok {
		s = &stageStats{}
		e.stats[stage] = s
	}
	s.evaluations++
	if result.Passed {
		s.passed++
	}
	s.scoreSum += result.Score
	e.mu.Unlock()

	e.logger.Debug("quality gate evaluated",
		zap.String("stage", string(stage)),
		zap.Float64("score", result.Score),
		zap.Float64("threshold", threshold),
		zap.Bool("passed", result.Passed),
		zap.Int("issues", len(result.Issues)),
	)

	return result
}
