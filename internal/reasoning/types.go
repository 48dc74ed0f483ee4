package reasoning

import "time"

// Category classifies why a stage's quality gate failed.
type Category string

const (
	CategoryExtractionUnclear      Category = "extraction_unclear"
	CategoryExtractionIncomplete   Category = "extraction_incomplete"
	CategorySearchNoResults        Category = "search_no_results"
	CategorySearchPoorMatches      Category = "search_poor_matches"
	CategoryMatchingLowConfidence  Category = "matching_low_confidence"
	CategoryMatchingConflicting    Category = "matching_conflicting"
	CategoryDataQuality            Category = "data_quality"
	CategoryTechnicalError         Category = "technical_error"
)

// Strategy names a deterministic set of collaborator parameter changes
// applied before re-attempting the pipeline.
type Strategy string

const (
	StrategyEnhancedExtraction Strategy = "enhanced_extraction"
	StrategyBroadenedSearch    Strategy = "broadened_search"
	StrategyAlternativeSearch  Strategy = "alternative_search"
	StrategyFuzzyMatching      Strategy = "fuzzy_matching"
	StrategyMultiStrategy      Strategy = "multi_strategy"
	StrategyHumanGuided        Strategy = "human_guided"
)

// Analysis is the classifier's verdict on a failed quality gate.
type Analysis struct {
	Category            Category   `json:"category"`
	Confidence          float64    `json:"confidence"`
	RootCauses          []string   `json:"root_causes,omitempty"`
	ContributingFactors []string   `json:"contributing_factors,omitempty"`
	ComplexityScore     float64    `json:"complexity_score"`
	SuggestedStrategies []Strategy `json:"suggested_strategies,omitempty"`

	// ScoreGap is threshold minus score from the failed gate. Small gaps
	// indicate a near-miss that a retry is likely to close.
	ScoreGap float64 `json:"score_gap"`
}

// Recommendation is the selector's retry decision for one failure.
type Recommendation struct {
	ShouldRetry        bool           `json:"should_retry"`
	Strategy           Strategy       `json:"strategy"`
	Modifications      *Modifications `json:"modifications,omitempty"`
	SuccessProbability float64        `json:"success_probability"`
	EstimatedExtraTime time.Duration  `json:"estimated_extra_time"`
	Reasoning          string         `json:"reasoning"`
}

// Modifications carries typed parameter changes per collaborator. Nil
// sub-structs mean the collaborator's configuration is untouched. Pointer
// fields distinguish "set to zero" from "leave alone".
type Modifications struct {
	Extractor *ExtractorMods `json:"extractor,omitempty"`
	Searcher  *SearcherMods  `json:"searcher,omitempty"`
	Matcher   *MatcherMods   `json:"matcher,omitempty"`
}

// ExtractorMods adjusts specification extraction behavior.
type ExtractorMods struct {
	DetailLevel       string `json:"detail_level,omitempty"`
	IncludeRawContext bool   `json:"include_raw_context,omitempty"`
}

// SearcherMods adjusts candidate search behavior.
type SearcherMods struct {
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	MaxResults          *int     `json:"max_results,omitempty"`
	UseAlternateIndex   bool     `json:"use_alternate_index,omitempty"`
	ExpandSynonyms      bool     `json:"expand_synonyms,omitempty"`
}

// MatcherMods adjusts match selection behavior.
type MatcherMods struct {
	AllowPartialMatches bool     `json:"allow_partial_matches,omitempty"`
	MinConfidence       *float64 `json:"min_confidence,omitempty"`
}

// LearningStatistics is a snapshot of the learned per-strategy success
// rates and the bounded retry history.
type LearningStatistics struct {
	Strategies map[Strategy]StrategyStatistics `json:"strategies"`
	History    []RetryRecord                   `json:"history"`
}

// StrategyStatistics aggregates learning state for one strategy.
type StrategyStatistics struct {
	Attempts    int64   `json:"attempts"`
	Successes   int64   `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
}

// RetryRecord is one entry in the retry history ring.
type RetryRecord struct {
	Strategy Strategy  `json:"strategy"`
	Success  bool      `json:"success"`
	At       time.Time `json:"at"`
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
