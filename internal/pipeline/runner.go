package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
	"github.com/fyrsmithlabs/matchd/internal/reasoning"
)

// runner drives one task through the state machine. It exclusively owns its
// task and its collaborator config copy; nothing here is shared with
// sibling tasks except the evaluator (which it only reads) and the
// reasoning model's internally synchronized learning table.
type runner struct {
	task     *Task
	collabs  Collaborators
	cfgs     CollaboratorConfigs
	gate     *qualitygate.Evaluator
	model    *reasoning.Model
	insights qualitygate.Insights
	logger   *zap.Logger
	tracer   trace.Tracer
}

func newRunner(task *Task, collabs Collaborators, cfgs CollaboratorConfigs, gate *qualitygate.Evaluator, model *reasoning.Model, logger *zap.Logger, tracer trace.Tracer) *runner {
	return &runner{
		task:     task,
		collabs:  collabs,
		cfgs:     cfgs,
		gate:     gate,
		model:    model,
		insights: insightsForItem(&task.Item),
		logger:   logger.With(zap.String("task_id", task.ID), zap.String("item_id", task.Item.ID)),
		tracer:   tracer,
	}
}

// insightsForItem derives contextual gate insights from the item itself.
func insightsForItem(item *lineitem.LineItem) qualitygate.Insights {
	insights := qualitygate.Insights{
		BusinessContext: item.Metadata["business_context"],
		Urgency:         string(item.Urgency),
	}
	if reasoning.ComplexityScore(item.RawText) > 0.7 {
		insights.Complexity = "critical"
	}
	return insights
}

// run executes the pipeline for the task, looping back to the start on each
// accepted retry. Retries re-run the whole pipeline from extraction: a new
// strategy may change what gets extracted, which changes everything
// downstream.
func (r *runner) run(ctx context.Context) *Outcome {
	ctx, span := r.tracer.Start(ctx, "pipeline.run_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task_id", r.task.ID),
		attribute.String("item_id", r.task.Item.ID),
		attribute.String("priority", string(r.task.Priority)),
	)

	r.task.StartedAt = time.Now()
	var lastStrategy reasoning.Strategy

	for {
		outcome, retry := r.attempt(ctx, &lastStrategy)
		if retry {
			continue
		}

		r.task.CompletedAt = time.Now()
		outcome.RetryCount = r.task.RetryCount
		outcome.ProcessingTime = r.task.CompletedAt.Sub(r.task.StartedAt)

		if lastStrategy != "" {
			r.model.UpdateSuccessRate(lastStrategy, outcome.State == StateMatched)
		}

		span.SetAttributes(
			attribute.String("state", string(outcome.State)),
			attribute.Int("retries", outcome.RetryCount),
		)
		if outcome.State == StateFailed {
			span.SetStatus(codes.Error, outcome.Error)
		}

		r.logger.Info("task finished",
			zap.String("state", string(outcome.State)),
			zap.Int("retries", outcome.RetryCount),
			zap.Duration("processing_time", outcome.ProcessingTime),
		)
		return outcome
	}
}

// attempt runs one full pass through the stages. It returns the terminal
// outcome, or retry=true when a gate failure was converted into an accepted
// retry (configs already modified, retry count incremented).
func (r *runner) attempt(ctx context.Context, lastStrategy *reasoning.Strategy) (*Outcome, bool) {
	if err := ctx.Err(); err != nil {
		return r.failed(fmt.Errorf("batch canceled: %w", err)), false
	}

	r.task.State = StateExtracting
	extraction, err := r.collabs.Extractor.Extract(ctx, r.task.Item.RawText, r.cfgs.Extractor)
	if err != nil {
		return r.failed(fmt.Errorf("extractor: %w", err)), false
	}
	gateResult, err := r.gate.EvaluateWithContext(ctx, qualitygate.StageExtraction, extraction, r.insights)
	if err != nil {
		return r.failed(err), false
	}
	if !gateResult.Passed {
		return r.handleGateFailure(ctx, qualitygate.StageExtraction, gateResult, lastStrategy)
	}

	if err := ctx.Err(); err != nil {
		return r.failed(fmt.Errorf("batch canceled: %w", err)), false
	}

	r.task.State = StateSearching
	search, err := r.collabs.Searcher.Search(ctx, r.task.Item.RawText, extraction.Specs, r.cfgs.Searcher)
	if err != nil {
		return r.failed(fmt.Errorf("searcher: %w", err)), false
	}
	gateResult, err = r.gate.EvaluateWithContext(ctx, qualitygate.StageSearch, search, r.insights)
	if err != nil {
		return r.failed(err), false
	}
	if !gateResult.Passed {
		return r.handleGateFailure(ctx, qualitygate.StageSearch, gateResult, lastStrategy)
	}

	if err := ctx.Err(); err != nil {
		return r.failed(fmt.Errorf("batch canceled: %w", err)), false
	}

	r.task.State = StateMatching
	match, err := r.collabs.Matcher.Match(ctx, &r.task.Item, search.Matches, r.cfgs.Matcher)
	if err != nil {
		return r.failed(fmt.Errorf("matcher: %w", err)), false
	}
	gateResult, err = r.gate.EvaluateWithContext(ctx, qualitygate.StageMatching, match, r.insights)
	if err != nil {
		return r.failed(err), false
	}
	if !gateResult.Passed {
		return r.handleGateFailure(ctx, qualitygate.StageMatching, gateResult, lastStrategy)
	}

	r.task.State = StateMatched
	return &Outcome{
		TaskID:     r.task.ID,
		ItemID:     r.task.Item.ID,
		State:      StateMatched,
		Match:      match,
		Confidence: gateResult.Confidence,
		Warnings:   gateResult.Warnings,
		Reasoning:  match.Reasoning,
	}, false
}

// handleGateFailure asks the reasoning model what to do with a failed gate.
// An accepted retry modifies this task's collaborator configs and resets
// the state machine; anything else escalates to manual review with the
// issue trail.
func (r *runner) handleGateFailure(ctx context.Context, stage qualitygate.Stage, gateResult *qualitygate.Result, lastStrategy *reasoning.Strategy) (*Outcome, bool) {
	rec, err := r.model.AnalyzeFailureAndSuggestRetry(ctx, &r.task.Item, stage, gateResult, r.task.RetryCount)
	if err != nil {
		return r.failed(fmt.Errorf("failure analysis: %w", err)), false
	}

	if rec.ShouldRetry && r.task.RetryCount < r.task.MaxRetries {
		if *lastStrategy != "" {
			// The previous strategy did not get the item through; record it
			// before switching.
			r.model.UpdateSuccessRate(*lastStrategy, false)
		}
		r.cfgs.Apply(rec.Modifications)
		r.task.RetryCount++
		r.task.State = StatePending
		*lastStrategy = rec.Strategy

		r.logger.Info("retrying item",
			zap.String("stage", string(stage)),
			zap.String("strategy", string(rec.Strategy)),
			zap.Float64("success_probability", rec.SuccessProbability),
			zap.Int("retry_count", r.task.RetryCount),
		)
		return nil, true
	}

	r.task.State = StateManualReview
	issues := append([]string{}, gateResult.Issues...)
	if r.task.RetryCount >= r.task.MaxRetries {
		issues = append(issues, fmt.Sprintf("retries exhausted after %d attempts", r.task.RetryCount))
	}
	return &Outcome{
		TaskID:    r.task.ID,
		ItemID:    r.task.Item.ID,
		State:     StateManualReview,
		Issues:    issues,
		Reasoning: rec.Reasoning,
	}, false
}

// failed converts an unhandled collaborator error into a terminal FAILED
// outcome. The error never propagates to sibling tasks or the caller.
func (r *runner) failed(err error) *Outcome {
	r.task.State = StateFailed
	r.logger.Warn("task failed", zap.Error(err))
	return &Outcome{
		TaskID: r.task.ID,
		ItemID: r.task.Item.ID,
		State:  StateFailed,
		Error:  err.Error(),
	}
}
