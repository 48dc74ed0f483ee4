// Package pipeline drives line items through the extraction, search, and
// matching stages with bounded concurrency, quality gating at every stage,
// and adaptive retry before escalating to manual review.
package pipeline

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

// Priority orders task dispatch. Ties are broken by creation order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// State is the processing state of one task. Matched, ManualReview, and
// Failed are terminal.
type State string

const (
	StatePending      State = "pending"
	StateExtracting   State = "extracting"
	StateSearching    State = "searching"
	StateMatching     State = "matching"
	StateMatched      State = "matched"
	StateManualReview State = "manual_review"
	StateFailed       State = "failed"
)

// Terminal reports whether the state ends processing.
func (s State) Terminal() bool {
	return s == StateMatched || s == StateManualReview || s == StateFailed
}

// Task wraps one line item through the pipeline. A task is mutated only by
// the runner that owns it; once CompletedAt is set it is immutable.
type Task struct {
	ID          string
	Item        lineitem.LineItem
	Priority    Priority
	State       State
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewTask creates a pending task for an item.
func NewTask(item lineitem.LineItem, priority Priority, maxRetries int) *Task {
	return &Task{
		ID:         uuid.New().String(),
		Item:       item,
		Priority:   priority,
		State:      StatePending,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
	}
}

// sortTasks orders tasks by priority, preserving creation order within a
// priority class.
func sortTasks(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.rank() < tasks[j].Priority.rank()
	})
}

// Outcome is the terminal result of one task.
type Outcome struct {
	TaskID         string                 `json:"task_id"`
	ItemID         string                 `json:"item_id"`
	State          State                  `json:"state"`
	Match          *lineitem.MatchResult  `json:"match,omitempty"`
	Confidence     qualitygate.Confidence `json:"confidence,omitempty"`
	Issues         []string               `json:"issues,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	Reasoning      string                 `json:"reasoning,omitempty"`
	RetryCount     int                    `json:"retry_count"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Error          string                 `json:"error,omitempty"`
}

// Statistics summarizes a batch.
type Statistics struct {
	TotalItems              int                            `json:"total_items"`
	CompletedSuccessfully   int                            `json:"completed_successfully"`
	RequiresReview          int                            `json:"requires_review"`
	Failed                  int                            `json:"failed"`
	AverageProcessingTimeMs float64                        `json:"average_processing_time_ms"`
	QualityDistribution     map[qualitygate.Confidence]int `json:"quality_distribution"`
}

// BatchResult is the aggregate output of ProcessBatch.
type BatchResult struct {
	Matches    map[string]*Outcome `json:"matches"`
	Statistics Statistics          `json:"statistics"`
	Confidence string              `json:"confidence"`
}

// Progress reports batch progress to an optional callback. Completed counts
// tasks that reached a terminal state.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	ItemID    string `json:"item_id"`
	State     State  `json:"state"`
}

// ProgressCallback receives a Progress event each time a task terminates.
// Callbacks are invoked from worker goroutines and must be safe for
// concurrent use.
type ProgressCallback func(Progress)
