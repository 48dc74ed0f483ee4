package catalog

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/pipeline"
)

// GreedyMatcher selects the highest-similarity candidate whose derived
// confidence clears the configured minimum. Confidence starts from the
// similarity score and is nudged by availability and price sanity.
type GreedyMatcher struct{}

// NewGreedyMatcher creates a matcher that picks the best available candidate.
func NewGreedyMatcher() *GreedyMatcher {
	return &GreedyMatcher{}
}

// Match implements pipeline.Matcher.
func (m *GreedyMatcher) Match(ctx context.Context, item *lineitem.LineItem, candidates []lineitem.Candidate, cfg pipeline.MatcherConfig) (*lineitem.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &lineitem.MatchResult{
			Confidence: 0,
			Reasoning:  "no candidates to match against",
		}, nil
	}

	var best *lineitem.Candidate
	bestScore := 0.0
	for i := range candidates {
		c := &candidates[i]
		score := c.Similarity
		if c.Availability > 0 {
			score += 0.05
		}
		if c.Price > 0 {
			score += 0.05
		}
		if score > 1 {
			score = 1
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}

	if bestScore < cfg.MinConfidence && !cfg.AllowPartialMatches {
		return &lineitem.MatchResult{
			Confidence: bestScore,
			Reasoning: fmt.Sprintf("best candidate %s scored %.2f below minimum confidence %.2f",
				best.PartNumber, bestScore, cfg.MinConfidence),
		}, nil
	}

	reason := fmt.Sprintf("selected %s (similarity %.2f, availability %d)",
		best.PartNumber, best.Similarity, best.Availability)
	if bestScore < cfg.MinConfidence {
		reason += "; accepted as partial match"
	}
	return &lineitem.MatchResult{
		Selected:   best,
		Confidence: bestScore,
		Reasoning:  reason,
	}, nil
}
