package reasoning

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

// Scoring increments for the three evidence sources. The category with the
// highest accumulated score wins; the winning score, capped at 1.0, becomes
// the analysis confidence.
const (
	indicatorWeight   = 0.3
	textPatternWeight = 0.2
	stageCheckWeight  = 0.4
)

// maxScanLength bounds regex input to prevent pathological matching on very
// long raw text.
const maxScanLength = 4096

// categoryIndicators maps each category to phrases looked up in the gate
// result's issues.
var categoryIndicators = map[Category][]string{
	CategoryExtractionUnclear:     {"too short", "not be parsed", "no specifications extracted", "unclear"},
	CategoryExtractionIncomplete:  {"missing extracted description", "missing or zero quantity", "lack standard keys"},
	CategorySearchNoResults:       {"no search results"},
	CategorySearchPoorMatches:     {"below acceptable floor", "candidates found", "low similarity"},
	CategoryMatchingLowConfidence: {"match confidence", "no part selected"},
	CategoryMatchingConflicting:   {"conflicting", "single supplier", "ambiguous"},
	CategoryDataQuality:           {"implausibly", "missing price", "availability is unknown"},
	CategoryTechnicalError:        {"timeout", "internal error", "unavailable"},
}

// textRule pairs a compiled regex against raw item text with the category it
// supports.
type textRule struct {
	regex    *regexp.Regexp
	category Category
}

func buildTextRules() []textRule {
	return []textRule{
		{regexp.MustCompile(`(?i)^\W*$`), CategoryExtractionUnclear},
		{regexp.MustCompile(`(?i)(?:\b(?:tbd|unknown|unclear|illegible)\b|\?{2,})`), CategoryExtractionUnclear},
		{regexp.MustCompile(`(?i)\b(?:misc|various|assorted|etc\.?)\b`), CategoryExtractionIncomplete},
		{regexp.MustCompile(`(?i)\b(?:custom|bespoke|special|non.?standard|modified)\b`), CategorySearchPoorMatches},
		{regexp.MustCompile(`(?i)\b(?:obsolete|discontinued|legacy)\b`), CategorySearchNoResults},
		{regexp.MustCompile(`(?i)\b(?:or\s+equivalent|alternativ|either|respectively)\b`), CategoryMatchingConflicting},
		{regexp.MustCompile(`(?i)[^\x00-\x7F]{4,}`), CategoryDataQuality},
	}
}

// Classifier determines the most likely failure category for a failed gate.
// Thread-safe: all rules are compiled at construction and immutable.
type Classifier struct {
	rules  []textRule
	logger *zap.Logger
}

// NewClassifier creates a classifier with the built-in rule set.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		rules:  buildTextRules(),
		logger: logger,
	}
}

// Classify scores every candidate category from three evidence sources:
// indicator phrases in the gate issues, regex matches against the raw item
// text, and stage-level score checks. The highest-scoring category wins.
func (c *Classifier) Classify(stage qualitygate.Stage, result *qualitygate.Result, item *lineitem.LineItem) *Analysis {
	scores := make(map[Category]float64)

	issues := strings.ToLower(strings.Join(result.Issues, " || "))
	for category, phrases := range categoryIndicators {
		for _, phrase := range phrases {
			if strings.Contains(issues, phrase) {
				scores[category] += indicatorWeight
			}
		}
	}

	text := item.RawText
	if len(text) > maxScanLength {
		text = text[:maxScanLength]
	}
	for _, rule := range c.rules {
		if rule.regex.MatchString(text) {
			scores[rule.category] += textPatternWeight
		}
	}

	for category, hit := range stageChecks(stage, result) {
		if hit {
			scores[category] += stageCheckWeight
		}
	}

	category, confidence := winner(scores)
	if category == "" {
		category = fallbackCategory(stage)
		confidence = 0.3
	}
	if confidence > 1 {
		confidence = 1
	}

	complexity := ComplexityScore(item.RawText)

	analysis := &Analysis{
		Category:            category,
		Confidence:          confidence,
		RootCauses:          rootCauses(result, item),
		ContributingFactors: contributingFactors(result, item),
		ComplexityScore:     complexity,
		SuggestedStrategies: suggestedStrategies(category, complexity),
		ScoreGap:            result.Threshold - result.Score,
	}

	c.logger.Debug("classified gate failure",
		zap.String("item_id", item.ID),
		zap.String("stage", string(stage)),
		zap.String("category", string(category)),
		zap.Float64("confidence", confidence),
		zap.Float64("complexity", complexity),
	)

	return analysis
}

// stageChecks applies stage-specific numeric checks to the gate result.
func stageChecks(stage qualitygate.Stage, result *qualitygate.Result) map[Category]bool {
	hits := make(map[Category]bool)
	switch stage {
	case qualitygate.StageExtraction:
		if result.Score < 0.3 {
			hits[CategoryExtractionUnclear] = true
		} else {
			hits[CategoryExtractionIncomplete] = true
		}
	case qualitygate.StageSearch:
		if hasIssueContaining(result, "no search results") {
			hits[CategorySearchNoResults] = true
		} else if result.Score < result.Threshold {
			hits[CategorySearchPoorMatches] = true
		}
	case qualitygate.StageMatching:
		if hasIssueContaining(result, "conflicting") {
			hits[CategoryMatchingConflicting] = true
		} else if result.Score < result.Threshold {
			hits[CategoryMatchingLowConfidence] = true
		}
	}
	return hits
}

func hasIssueContaining(result *qualitygate.Result, phrase string) bool {
	for _, issue := range result.Issues {
		if strings.Contains(strings.ToLower(issue), phrase) {
			return true
		}
	}
	return false
}

func winner(scores map[Category]float64) (Category, float64) {
	var best Category
	bestScore := 0.0
	// Deterministic tie-break: iterate a fixed order.
	for _, category := range []Category{
		CategoryExtractionUnclear, CategoryExtractionIncomplete,
		CategorySearchNoResults, CategorySearchPoorMatches,
		CategoryMatchingLowConfidence, CategoryMatchingConflicting,
		CategoryDataQuality, CategoryTechnicalError,
	} {
		if s := scores[category]; s > bestScore {
			best = category
			bestScore = s
		}
	}
	return best, bestScore
}

func fallbackCategory(stage qualitygate.Stage) Category {
	switch stage {
	case qualitygate.StageSearch:
		return CategorySearchPoorMatches
	case qualitygate.StageMatching:
		return CategoryMatchingLowConfidence
	default:
		return CategoryExtractionUnclear
	}
}

// rootCauses derives string tags from predicate checks on the gate result
// and the item.
func rootCauses(result *qualitygate.Result, item *lineitem.LineItem) []string {
	var causes []string
	if len(strings.TrimSpace(item.RawText)) < 20 {
		causes = append(causes, "insufficient_source_text")
	}
	if hasIssueContaining(result, "missing") || hasIssueContaining(result, "no specifications") {
		causes = append(causes, "incomplete_data")
	}
	if hasIssueContaining(result, "too short") || hasIssueContaining(result, "unclear") {
		causes = append(causes, "vague_description")
	}
	if hasIssueContaining(result, "no search results") {
		causes = append(causes, "no_catalog_coverage")
	}
	if len(causes) == 0 {
		causes = append(causes, "quality_below_threshold")
	}
	return causes
}

// contributingFactors derives softer tags from item metadata and warnings.
func contributingFactors(result *qualitygate.Result, item *lineitem.LineItem) []string {
	var factors []string
	if item.Urgency == lineitem.UrgencyHigh || item.Urgency == lineitem.UrgencyCritical {
		factors = append(factors, "high_urgency_pressure")
	}
	if len(result.Warnings) > 2 {
		factors = append(factors, "multiple_soft_concerns")
	}
	if item.Quantity == 0 {
		factors = append(factors, "unspecified_quantity")
	}
	return factors
}

// suggestedStrategies maps a category to its candidate retry strategies.
// MultiStrategy is appended for complex items.
func suggestedStrategies(category Category, complexity float64) []Strategy {
	var strategies []Strategy
	switch category {
	case CategoryExtractionUnclear:
		strategies = []Strategy{StrategyEnhancedExtraction, StrategyHumanGuided}
	case CategoryExtractionIncomplete:
		strategies = []Strategy{StrategyEnhancedExtraction}
	case CategorySearchNoResults:
		strategies = []Strategy{StrategyBroadenedSearch, StrategyAlternativeSearch}
	case CategorySearchPoorMatches:
		strategies = []Strategy{StrategyBroadenedSearch, StrategyAlternativeSearch, StrategyFuzzyMatching}
	case CategoryMatchingLowConfidence:
		strategies = []Strategy{StrategyFuzzyMatching, StrategyBroadenedSearch}
	case CategoryMatchingConflicting:
		strategies = []Strategy{StrategyHumanGuided, StrategyFuzzyMatching}
	case CategoryDataQuality:
		strategies = []Strategy{StrategyEnhancedExtraction, StrategyHumanGuided}
	default:
		strategies = []Strategy{StrategyHumanGuided}
	}
	if complexity > 0.7 {
		strategies = append(strategies, StrategyMultiStrategy)
	}
	return strategies
}
