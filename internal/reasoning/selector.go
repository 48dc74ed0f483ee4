package reasoning

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// baseEffectiveness maps (category, strategy) to a base success estimate in
// [0,1]. Missing entries fall back to defaultEffectiveness.
var baseEffectiveness = map[Category]map[Strategy]float64{
	CategoryExtractionUnclear: {
		StrategyEnhancedExtraction: 0.70,
		StrategyHumanGuided:        0.85,
		StrategyMultiStrategy:      0.75,
	},
	CategoryExtractionIncomplete: {
		StrategyEnhancedExtraction: 0.75,
		StrategyMultiStrategy:      0.70,
	},
	CategorySearchNoResults: {
		StrategyBroadenedSearch:   0.70,
		StrategyAlternativeSearch: 0.60,
		StrategyMultiStrategy:     0.65,
	},
	CategorySearchPoorMatches: {
		StrategyBroadenedSearch:   0.60,
		StrategyAlternativeSearch: 0.65,
		StrategyFuzzyMatching:     0.55,
		StrategyMultiStrategy:     0.70,
	},
	CategoryMatchingLowConfidence: {
		StrategyFuzzyMatching:   0.60,
		StrategyBroadenedSearch: 0.50,
		StrategyMultiStrategy:   0.65,
	},
	CategoryMatchingConflicting: {
		StrategyHumanGuided:   0.85,
		StrategyFuzzyMatching: 0.45,
	},
	CategoryDataQuality: {
		StrategyEnhancedExtraction: 0.55,
		StrategyHumanGuided:        0.80,
	},
	CategoryTechnicalError: {
		StrategyHumanGuided: 0.75,
	},
}

// defaultEffectiveness is the per-strategy fallback when a (category,
// strategy) pair has no table entry.
var defaultEffectiveness = map[Strategy]float64{
	StrategyEnhancedExtraction: 0.55,
	StrategyBroadenedSearch:    0.50,
	StrategyAlternativeSearch:  0.50,
	StrategyFuzzyMatching:      0.45,
	StrategyMultiStrategy:      0.60,
	StrategyHumanGuided:        0.80,
}

// baseRetryTime is the estimated extra processing time per strategy before
// complexity scaling. HumanGuided carries the human-wait cost.
var baseRetryTime = map[Strategy]time.Duration{
	StrategyEnhancedExtraction: 3500 * time.Millisecond,
	StrategyBroadenedSearch:    2500 * time.Millisecond,
	StrategyAlternativeSearch:  2800 * time.Millisecond,
	StrategyFuzzyMatching:      2000 * time.Millisecond,
	StrategyMultiStrategy:      6000 * time.Millisecond,
	StrategyHumanGuided:        30 * time.Minute,
}

// Probability bounds and retry decision cut-offs.
const (
	minSuccessProbability = 0.10
	maxSuccessProbability = 0.95
	retryRejectBelow      = 0.30
	retryAcceptAbove      = 0.70
	nearMissGap           = 0.10
)

// Selector picks a retry strategy for a failure analysis. It is stateless
// apart from the shared learning table it blends into probability
// estimates.
type Selector struct {
	learning *Learning
	logger   *zap.Logger
}

// NewSelector creates a selector backed by the given learning table.
func NewSelector(learning *Learning, logger *zap.Logger) (*Selector, error) {
	if learning == nil {
		return nil, fmt.Errorf("learning table is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{learning: learning, logger: logger}, nil
}

// effectiveness returns the table entry for (category, strategy), falling
// back to the strategy default.
func effectiveness(category Category, strategy Strategy) float64 {
	if row, ok := baseEffectiveness[category]; ok {
		if v, ok := row[strategy]; ok {
			return v
		}
	}
	return defaultEffectiveness[strategy]
}

// SelectStrategy picks the best strategy for the analysis and decides
// whether retrying is worth the cost.
func (s *Selector) SelectStrategy(analysis *Analysis, retryCount int) *Recommendation {
	candidates := analysis.SuggestedStrategies
	if len(candidates) == 0 {
		candidates = []Strategy{StrategyHumanGuided}
	}

	var best Strategy
	bestScore := -1.0
	for _, strategy := range candidates {
		score := effectiveness(analysis.Category, strategy)

		// Complex items favor the combined strategy; otherwise nudge the
		// thorough options.
		if analysis.ComplexityScore > 0.7 {
			if strategy == StrategyMultiStrategy {
				score += 0.2
			} else if strategy == StrategyHumanGuided || strategy == StrategyEnhancedExtraction {
				score += 0.1
			}
		}

		// A prior failed retry argues for changing more at once.
		if retryCount > 0 {
			if strategy == StrategyMultiStrategy {
				score += 0.15
			} else if strategy == StrategyAlternativeSearch {
				score += 0.1
			}
		}

		if score > bestScore {
			best = strategy
			bestScore = score
		}
	}

	probability := s.successProbability(analysis, best, retryCount)
	shouldRetry := s.shouldRetry(analysis, probability)

	rec := &Recommendation{
		ShouldRetry:        shouldRetry,
		Strategy:           best,
		Modifications:      modificationsFor(best),
		SuccessProbability: probability,
		EstimatedExtraTime: estimatedExtraTime(best, analysis.ComplexityScore),
		Reasoning:          retryReasoning(analysis, best, probability, shouldRetry),
	}

	s.logger.Debug("selected retry strategy",
		zap.String("category", string(analysis.Category)),
		zap.String("strategy", string(best)),
		zap.Float64("success_probability", probability),
		zap.Bool("should_retry", shouldRetry),
		zap.Int("retry_count", retryCount),
	)

	return rec
}

// successProbability estimates the chance the chosen strategy succeeds,
// blending the static effectiveness estimate with the learned per-strategy
// success rate.
func (s *Selector) successProbability(analysis *Analysis, strategy Strategy, retryCount int) float64 {
	p := effectiveness(analysis.Category, strategy)

	if analysis.Confidence > 0.8 {
		p += 0.1
	} else if analysis.Confidence < 0.5 {
		p -= 0.1
	}

	p -= analysis.ComplexityScore * 0.2

	// Each successive retry costs less than the previous one: 0.10, 0.05,
	// 0.033, ...
	for i := 0; i < retryCount; i++ {
		p -= 0.1 / float64(i+1)
	}

	if learned, ok := s.learning.SuccessRate(strategy); ok {
		p = (p + learned) / 2
	}

	if p < minSuccessProbability {
		p = minSuccessProbability
	}
	if p > maxSuccessProbability {
		p = maxSuccessProbability
	}
	return p
}

// shouldRetry applies the decision rule: reject hopeless retries, accept
// confident ones, accept near-misses, and accept moderately promising
// retries on simple items.
func (s *Selector) shouldRetry(analysis *Analysis, probability float64) bool {
	switch {
	case probability < retryRejectBelow:
		return false
	case probability > retryAcceptAbove:
		return true
	case analysis.ScoreGap >= 0 && analysis.ScoreGap < nearMissGap:
		return true
	case analysis.ComplexityScore < 0.5 && probability > 0.5:
		return true
	default:
		return probability > 0.5
	}
}

// modificationsFor returns the fixed, deterministic parameter changes for a
// strategy.
func modificationsFor(strategy Strategy) *Modifications {
	switch strategy {
	case StrategyEnhancedExtraction:
		return &Modifications{
			Extractor: &ExtractorMods{DetailLevel: "enhanced", IncludeRawContext: true},
		}
	case StrategyBroadenedSearch:
		return &Modifications{
			Searcher: &SearcherMods{
				SimilarityThreshold: floatPtr(0.45),
				MaxResults:          intPtr(25),
				ExpandSynonyms:      true,
			},
		}
	case StrategyAlternativeSearch:
		return &Modifications{
			Searcher: &SearcherMods{
				UseAlternateIndex:   true,
				SimilarityThreshold: floatPtr(0.55),
			},
		}
	case StrategyFuzzyMatching:
		return &Modifications{
			Matcher: &MatcherMods{
				AllowPartialMatches: true,
				MinConfidence:       floatPtr(0.50),
			},
		}
	case StrategyMultiStrategy:
		return &Modifications{
			Extractor: &ExtractorMods{DetailLevel: "enhanced", IncludeRawContext: true},
			Searcher: &SearcherMods{
				SimilarityThreshold: floatPtr(0.45),
				MaxResults:          intPtr(25),
				ExpandSynonyms:      true,
			},
			Matcher: &MatcherMods{
				AllowPartialMatches: true,
				MinConfidence:       floatPtr(0.50),
			},
		}
	default: // StrategyHumanGuided changes nothing automatically.
		return &Modifications{}
	}
}

// estimatedExtraTime scales the strategy's base time by item complexity.
func estimatedExtraTime(strategy Strategy, complexity float64) time.Duration {
	base := baseRetryTime[strategy]
	return time.Duration(float64(base) * (1 + complexity*0.5))
}

func retryReasoning(analysis *Analysis, strategy Strategy, probability float64, shouldRetry bool) string {
	verdict := "retrying"
	if !shouldRetry {
		verdict = "not retrying"
	}
	return fmt.Sprintf("%s with %s: failure classified as %s (confidence %.2f, complexity %.2f), estimated success probability %.2f",
		verdict, strategy, analysis.Category, analysis.Confidence, analysis.ComplexityScore, probability)
}
