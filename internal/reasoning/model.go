package reasoning

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

const instrumentationName = "github.com/fyrsmithlabs/matchd/internal/reasoning"

// Model combines failure classification, strategy selection, and outcome
// learning behind the surface the pipeline consumes.
type Model struct {
	classifier *Classifier
	selector   *Selector
	learning   *Learning
	logger     *zap.Logger

	tracer       trace.Tracer
	meter        metric.Meter
	retryCounter metric.Int64Counter
}

// NewModel creates a reasoning model with a fresh learning table.
func NewModel(logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	learning := NewLearning()
	selector, err := NewSelector(learning, logger)
	if err != nil {
		return nil, err
	}

	m := &Model{
		classifier: NewClassifier(logger),
		selector:   selector,
		learning:   learning,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
	}

	m.retryCounter, err = m.meter.Int64Counter(
		"matchd.reasoning.recommendations_total",
		metric.WithDescription("Total number of retry recommendations produced"),
		metric.WithUnit("{recommendation}"),
	)
	if err != nil {
		logger.Warn("failed to create recommendation counter", zap.Error(err))
	}

	return m, nil
}

// AnalyzeFailureAndSuggestRetry classifies a failed gate result and returns
// a retry recommendation for it. retryCount is the number of retries the
// item has already consumed.
func (m *Model) AnalyzeFailureAndSuggestRetry(ctx context.Context, item *lineitem.LineItem, stage qualitygate.Stage, result *qualitygate.Result, retryCount int) (*Recommendation, error) {
	if item == nil {
		return nil, errors.New("item is required")
	}
	if result == nil {
		return nil, errors.New("quality result is required")
	}
	if result.Passed {
		return nil, errors.New("quality result did not fail")
	}

	ctx, span := m.tracer.Start(ctx, "reasoning.analyze_failure")
	defer span.End()

	analysis := m.classifier.Classify(stage, result, item)
	rec := m.selector.SelectStrategy(analysis, retryCount)

	span.SetAttributes(
		attribute.String("item_id", item.ID),
		attribute.String("stage", string(stage)),
		attribute.String("category", string(analysis.Category)),
		attribute.String("strategy", string(rec.Strategy)),
		attribute.Bool("should_retry", rec.ShouldRetry),
		attribute.Float64("success_probability", rec.SuccessProbability),
	)
	if m.retryCounter != nil {
		m.retryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", string(analysis.Category)),
			attribute.String("strategy", string(rec.Strategy)),
			attribute.Bool("should_retry", rec.ShouldRetry),
		))
	}

	return rec, nil
}

// UpdateSuccessRate records the outcome of a retry attempt for learning.
func (m *Model) UpdateSuccessRate(strategy Strategy, success bool) {
	m.learning.UpdateSuccessRate(strategy, success)
}

// GetLearningStatistics returns a snapshot of learned success rates and
// recent retry history.
func (m *Model) GetLearningStatistics() LearningStatistics {
	return m.learning.Statistics()
}
