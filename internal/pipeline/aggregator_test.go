package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

func outcome(itemID string, state State, confidence qualitygate.Confidence, took time.Duration) *Outcome {
	return &Outcome{
		TaskID:         "task-" + itemID,
		ItemID:         itemID,
		State:          state,
		Confidence:     confidence,
		ProcessingTime: took,
	}
}

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil)
	assert.Equal(t, 0, result.Statistics.TotalItems)
	assert.Equal(t, "unknown", result.Confidence)
}

func TestAggregatePartition(t *testing.T) {
	outcomes := []*Outcome{
		outcome("a", StateMatched, qualitygate.ConfidenceHigh, 100*time.Millisecond),
		outcome("b", StateMatched, qualitygate.ConfidenceMedium, 200*time.Millisecond),
		outcome("c", StateMatched, qualitygate.ConfidenceMediumLow, 300*time.Millisecond),
		outcome("d", StateManualReview, "", 400*time.Millisecond),
		outcome("e", StateFailed, "", 0),
	}

	result := Aggregate(outcomes)
	stats := result.Statistics

	assert.Equal(t, 5, stats.TotalItems)
	// Matched at medium or better counts as success; the medium_low match
	// joins manual review in the review bucket.
	assert.Equal(t, 2, stats.CompletedSuccessfully)
	assert.Equal(t, 2, stats.RequiresReview)
	assert.Equal(t, 1, stats.Failed)

	assert.Equal(t, 1, stats.QualityDistribution[qualitygate.ConfidenceHigh])
	assert.Equal(t, 1, stats.QualityDistribution[qualitygate.ConfidenceMedium])
	assert.Equal(t, 1, stats.QualityDistribution[qualitygate.ConfidenceMediumLow])

	assert.InDelta(t, 200.0, stats.AverageProcessingTimeMs, 1e-9)

	require.Len(t, result.Matches, 5)
	assert.Equal(t, StateManualReview, result.Matches["d"].State)
}

func TestAggregateSubMillisecondTiming(t *testing.T) {
	outcomes := []*Outcome{
		outcome("a", StateMatched, qualitygate.ConfidenceHigh, 500*time.Microsecond),
		outcome("b", StateMatched, qualitygate.ConfidenceHigh, 300*time.Microsecond),
	}

	result := Aggregate(outcomes)
	assert.InDelta(t, 0.4, result.Statistics.AverageProcessingTimeMs, 1e-9)
}

func TestAggregateEveryOutcomeCountedOnce(t *testing.T) {
	outcomes := []*Outcome{
		outcome("a", StateMatched, qualitygate.ConfidenceHigh, time.Millisecond),
		outcome("b", StateMatched, qualitygate.ConfidenceLow, time.Millisecond),
		outcome("c", StateManualReview, "", time.Millisecond),
		outcome("d", StateFailed, "", time.Millisecond),
	}

	stats := Aggregate(outcomes).Statistics
	assert.Equal(t, stats.TotalItems,
		stats.CompletedSuccessfully+stats.RequiresReview+stats.Failed)
}

func TestOverallConfidenceLabels(t *testing.T) {
	mkBatch := func(high, medium, review, failed int) []*Outcome {
		var outcomes []*Outcome
		id := 0
		add := func(n int, state State, conf qualitygate.Confidence) {
			for i := 0; i < n; i++ {
				outcomes = append(outcomes, outcome(string(rune('a'+id)), state, conf, time.Millisecond))
				id++
			}
		}
		add(high, StateMatched, qualitygate.ConfidenceHigh)
		add(medium, StateMatched, qualitygate.ConfidenceMedium)
		add(review, StateManualReview, "")
		add(failed, StateFailed, "")
		return outcomes
	}

	tests := []struct {
		name string
		outs []*Outcome
		want string
	}{
		{"mostly high confidence", mkBatch(9, 1, 0, 0), "high"},
		{"good success rate", mkBatch(3, 5, 2, 0), "medium-high"},
		{"half succeed", mkBatch(1, 4, 4, 1), "medium"},
		{"mostly failing", mkBatch(1, 1, 4, 4), "low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.outs).Confidence)
		})
	}
}
