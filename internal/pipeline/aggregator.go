package pipeline

import (
	"time"

	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

// successConfidences are the match confidence buckets counted as completed
// successfully. Matched outcomes below these buckets still need a human
// look and are counted under requires-review instead.
var successConfidences = map[qualitygate.Confidence]bool{
	qualitygate.ConfidenceHigh:       true,
	qualitygate.ConfidenceMediumHigh: true,
	qualitygate.ConfidenceMedium:     true,
}

// Aggregate compiles terminal outcomes into the batch result. It depends
// only on the set of outcomes, not the order they completed in.
func Aggregate(outcomes []*Outcome) *BatchResult {
	result := &BatchResult{
		Matches: make(map[string]*Outcome, len(outcomes)),
		Statistics: Statistics{
			TotalItems:          len(outcomes),
			QualityDistribution: make(map[qualitygate.Confidence]int),
		},
	}

	var totalTime time.Duration
	highConfidence := 0

	for _, outcome := range outcomes {
		result.Matches[outcome.ItemID] = outcome
		totalTime += outcome.ProcessingTime

		switch outcome.State {
		case StateMatched:
			result.Statistics.QualityDistribution[outcome.Confidence]++
			if successConfidences[outcome.Confidence] {
				result.Statistics.CompletedSuccessfully++
			} else {
				result.Statistics.RequiresReview++
			}
			if outcome.Confidence == qualitygate.ConfidenceHigh {
				highConfidence++
			}
		case StateManualReview:
			result.Statistics.RequiresReview++
		default:
			result.Statistics.Failed++
		}
	}

	if len(outcomes) > 0 {
		result.Statistics.AverageProcessingTimeMs = float64(totalTime) / float64(time.Millisecond) / float64(len(outcomes))
	}

	result.Confidence = overallConfidence(result.Statistics, highConfidence)
	return result
}

// overallConfidence labels the batch from the high-confidence rate and the
// overall success rate.
func overallConfidence(stats Statistics, highConfidence int) string {
	if stats.TotalItems == 0 {
		return "unknown"
	}
	total := float64(stats.TotalItems)
	highRate := float64(highConfidence) / total
	successRate := float64(stats.CompletedSuccessfully) / total

	switch {
	case highRate >= 0.8:
		return "high"
	case successRate >= 0.7:
		return "medium-high"
	case successRate >= 0.5:
		return "medium"
	default:
		return "low"
	}
}
