package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
	"github.com/fyrsmithlabs/matchd/internal/reasoning"
)

const instrumentationName = "github.com/fyrsmithlabs/matchd/internal/pipeline"

// Service is the batch processing entry point.
type Service interface {
	// ProcessBatch runs every item through the pipeline and returns the
	// aggregate result. Per-item failures are captured in the result; only
	// setup errors are returned.
	ProcessBatch(ctx context.Context, items []lineitem.LineItem) (*BatchResult, error)

	// Evaluator exposes the quality gate evaluator, e.g. for statistics.
	Evaluator() *qualitygate.Evaluator

	// Reasoning exposes the reasoning model, e.g. for learning statistics.
	Reasoning() *reasoning.Model
}

// Config configures the pipeline service.
type Config struct {
	// MaxConcurrency bounds how many items are processed at once
	// (default: 4).
	MaxConcurrency int

	// MaxRetries bounds retries per item before escalating to manual
	// review (default: 3).
	MaxRetries int

	// TaskTimeout bounds one item's total processing time including
	// retries. Zero disables the timeout.
	TaskTimeout time.Duration

	// Profile selects the quality threshold profile (default: standard).
	Profile qualitygate.Profile

	// Collaborators holds the baseline stage configurations. Each task
	// gets its own copy.
	Collaborators CollaboratorConfigs

	// PriorityFor assigns a dispatch priority to an item. Nil means every
	// item is PriorityMedium.
	PriorityFor func(item *lineitem.LineItem) Priority

	// OnProgress receives a callback per terminal task. Optional.
	OnProgress ProgressCallback
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 4,
		MaxRetries:     3,
		Profile:        qualitygate.ProfileStandard,
		Collaborators:  DefaultCollaboratorConfigs(),
	}
}

// service implements Service.
type service struct {
	config  *Config
	collabs Collaborators
	gate    *qualitygate.Evaluator
	model   *reasoning.Model
	logger  *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	itemCounter   metric.Int64Counter
	batchDuration metric.Float64Histogram
}

// NewService creates a pipeline service. Collaborators and configuration
// are validated here; processing never starts with a broken setup.
func NewService(cfg *Config, collabs Collaborators, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := collabs.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("max concurrency must be positive, got %d", cfg.MaxConcurrency)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gate, err := qualitygate.NewEvaluator(cfg.Profile, logger)
	if err != nil {
		return nil, fmt.Errorf("quality gate: %w", err)
	}
	model, err := reasoning.NewModel(logger)
	if err != nil {
		return nil, fmt.Errorf("reasoning model: %w", err)
	}

	s := &service{
		config:  cfg,
		collabs: collabs,
		gate:    gate,
		model:   model,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
	}
	s.initMetrics()

	return s, nil
}

func (s *service) initMetrics() {
	var err error

	s.itemCounter, err = s.meter.Int64Counter(
		"matchd.pipeline.items_total",
		metric.WithDescription("Total number of line items processed, by terminal state"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		s.logger.Warn("failed to create item counter", zap.Error(err))
	}

	s.batchDuration, err = s.meter.Float64Histogram(
		"matchd.pipeline.batch_duration_seconds",
		metric.WithDescription("Wall-clock duration of batch processing"),
		metric.WithUnit("s"),
	)
	if err != nil {
		s.logger.Warn("failed to create batch duration histogram", zap.Error(err))
	}
}

func (s *service) Evaluator() *qualitygate.Evaluator { return s.gate }
func (s *service) Reasoning() *reasoning.Model       { return s.model }

// ProcessBatch runs the batch. Tasks are dispatched in priority order under
// the concurrency bound; every item ends in exactly one terminal state.
func (s *service) ProcessBatch(ctx context.Context, items []lineitem.LineItem) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, errors.New("no items to process")
	}

	ctx, span := s.tracer.Start(ctx, "pipeline.process_batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("items", len(items)),
		attribute.Int("max_concurrency", s.config.MaxConcurrency),
		attribute.String("profile", string(s.config.Profile)),
	)

	start := time.Now()
	tasks := make([]*Task, 0, len(items))
	for _, item := range items {
		priority := PriorityMedium
		if s.config.PriorityFor != nil {
			priority = s.config.PriorityFor(&item)
		}
		tasks = append(tasks, NewTask(item, priority, s.config.MaxRetries))
	}

	ctrl := &controller{
		maxConcurrency: s.config.MaxConcurrency,
		taskTimeout:    s.config.TaskTimeout,
		logger:         s.logger,
		tracer:         s.tracer,
		progress:       s.config.OnProgress,
	}

	outcomes := ctrl.run(ctx, tasks, func(t *Task) *runner {
		return newRunner(t, s.collabs, s.config.Collaborators, s.gate, s.model, s.logger, s.tracer)
	})

	result := Aggregate(outcomes)

	elapsed := time.Since(start)
	if s.itemCounter != nil {
		for _, outcome := range outcomes {
			s.itemCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("state", string(outcome.State)),
			))
		}
	}
	if s.batchDuration != nil {
		s.batchDuration.Record(ctx, elapsed.Seconds())
	}

	s.logger.Info("batch processed",
		zap.Int("total", result.Statistics.TotalItems),
		zap.Int("successful", result.Statistics.CompletedSuccessfully),
		zap.Int("requires_review", result.Statistics.RequiresReview),
		zap.Int("failed", result.Statistics.Failed),
		zap.String("confidence", result.Confidence),
		zap.Duration("elapsed", elapsed),
	)

	return result, nil
}
