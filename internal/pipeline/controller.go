package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// controller fans tasks out to runners, bounding how many execute
// concurrently. The dispatch loop acquires a slot before spawning each
// worker, so tasks start in priority order; completion order is whatever
// the workers produce. Retries happen inside the runner loop, so a
// retrying task never consumes a second slot.
type controller struct {
	maxConcurrency int
	taskTimeout    time.Duration
	logger         *zap.Logger
	tracer         trace.Tracer
	progress       ProgressCallback
}

// run executes all tasks and returns one terminal outcome per task. A panic
// in one task is recovered and converted into a FAILED outcome for that
// task only.
func (c *controller) run(ctx context.Context, tasks []*Task, mkRunner func(*Task) *runner) []*Outcome {
	if len(tasks) == 0 {
		return nil
	}

	sortTasks(tasks)

	resultsChan := make(chan *Outcome, len(tasks))
	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup
	var completed atomic.Int64

	for _, task := range tasks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			task.State = StateFailed
			resultsChan <- &Outcome{
				TaskID: task.ID,
				ItemID: task.Item.ID,
				State:  StateFailed,
				Error:  fmt.Sprintf("batch canceled before start: %v", ctx.Err()),
			}
			c.reportProgress(int(completed.Add(1)), len(tasks), task.Item.ID, StateFailed)
			continue
		}

		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := c.runOne(ctx, t, mkRunner)
			resultsChan <- outcome
			c.reportProgress(int(completed.Add(1)), len(tasks), t.Item.ID, outcome.State)
		}(task)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var outcomes []*Outcome
	for outcome := range resultsChan {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// runOne executes a single task with panic recovery and the optional
// per-task timeout.
func (c *controller) runOne(ctx context.Context, task *Task, mkRunner func(*Task) *runner) (outcome *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			task.State = StateFailed
			c.logger.Error("task panicked",
				zap.String("task_id", task.ID),
				zap.String("item_id", task.Item.ID),
				zap.Any("panic", r),
			)
			outcome = &Outcome{
				TaskID: task.ID,
				ItemID: task.Item.ID,
				State:  StateFailed,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	if c.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.taskTimeout)
		defer cancel()
	}

	return mkRunner(task).run(ctx)
}

func (c *controller) reportProgress(completed, total int, itemID string, state State) {
	if c.progress != nil {
		c.progress(Progress{
			Completed: completed,
			Total:     total,
			ItemID:    itemID,
			State:     state,
		})
	}
}
