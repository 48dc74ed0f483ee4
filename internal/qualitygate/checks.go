package qualitygate

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
)

// checkResult is the outcome of one named sub-check. Scores are in [0,1];
// the weighted sum over a stage's checks produces the gate score.
type checkResult struct {
	name            string
	weight          float64
	score           float64
	issues          []string
	warnings        []string
	recommendations []string
}

// Per-stage sub-check weights. Each stage's weights must sum to 1.0; this is
// validated when an Evaluator is constructed.
var (
	extractionWeights = map[string]float64{
		"required_fields":      0.30,
		"description_quality":  0.30,
		"quantity_validity":    0.20,
		"spec_completeness":    0.20,
	}
	searchWeights = map[string]float64{
		"result_count":          0.30,
		"similarity_adequacy":   0.30,
		"result_diversity":      0.20,
		"metadata_completeness": 0.20,
	}
	matchingWeights = map[string]float64{
		"selection_confidence":       0.40,
		"business_data_completeness": 0.25,
		"reasoning_quality":          0.20,
		"price_sanity":               0.15,
	}
)

// specKeys are the specification keys counted toward spec completeness.
var specKeys = []string{"material", "dimensions", "standard", "tolerance"}

func validateWeights() error {
	for stage, weights := range map[Stage]map[string]float64{
		StageExtraction: extractionWeights,
		StageSearch:     searchWeights,
		StageMatching:   matchingWeights,
	} {
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			return fmt.Errorf("sub-check weights for stage %s sum to %f, want 1.0", stage, sum)
		}
	}
	return nil
}

func extractionChecks(data *lineitem.ExtractionResult) []checkResult {
	required := checkResult{name: "required_fields", weight: extractionWeights["required_fields"]}
	present := 0
	if data.Description != "" {
		present++
	} else {
		required.issues = append(required.issues, "missing extracted description")
	}
	if len(data.Specs) > 0 {
		present++
	} else {
		required.issues = append(required.issues, "no specifications extracted")
	}
	if data.Quantity > 0 {
		present++
	} else {
		required.issues = append(required.issues, "missing or zero quantity")
	}
	required.score = float64(present) / 3.0

	desc := checkResult{name: "description_quality", weight: extractionWeights["description_quality"]}
	desc.score = descriptionQuality(data.Description)
	if len(data.Description) > 0 && len(data.Description) < 10 {
		desc.issues = append(desc.issues, "extracted description too short to be meaningful")
	}
	if desc.score < 0.5 && desc.score > 0 {
		desc.recommendations = append(desc.recommendations, "re-extract with enhanced detail to improve description")
	}

	qty := checkResult{name: "quantity_validity", weight: extractionWeights["quantity_validity"]}
	switch {
	case data.Quantity <= 0:
		qty.score = 0
		qty.issues = append(qty.issues, "quantity is not a positive number")
	case data.Quantity > 1_000_000:
		qty.score = 0.3
		qty.warnings = append(qty.warnings, "quantity is implausibly large")
	default:
		qty.score = 1
	}

	spec := checkResult{name: "spec_completeness", weight: extractionWeights["spec_completeness"]}
	found := 0
	for _, key := range specKeys {
		if v, ok := data.Specs[key]; ok && v != "" {
			found++
		}
	}
	spec.score = float64(found) / float64(len(specKeys))
	if found == 0 && len(data.Specs) > 0 {
		spec.warnings = append(spec.warnings, "specifications lack standard keys (material, dimensions, standard, tolerance)")
	}

	return []checkResult{required, desc, qty, spec}
}

// descriptionQuality scores a description on length and content. Longer
// descriptions that carry digits or unit tokens score higher.
func descriptionQuality(desc string) float64 {
	if desc == "" {
		return 0
	}
	score := 0.4
	if len(desc) >= 20 {
		score += 0.3
	} else if len(desc) >= 10 {
		score += 0.15
	}
	hasDigit := strings.IndexFunc(desc, unicode.IsDigit) >= 0
	if hasDigit {
		score += 0.15
	}
	lower := strings.ToLower(desc)
	for _, unit := range []string{"mm", "cm", "m ", "kg", "inch", "\"", "pcs", "x"} {
		if strings.Contains(lower, unit) {
			score += 0.15
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func searchChecks(data *lineitem.SearchResult) []checkResult {
	count := checkResult{name: "result_count", weight: searchWeights["result_count"]}
	n := len(data.Matches)
	switch {
	case n == 0:
		count.score = 0
		count.issues = append(count.issues, "no search results found")
	case n >= 5:
		count.score = 1
	default:
		count.score = float64(n) / 5.0
		count.warnings = append(count.warnings, fmt.Sprintf("only %d candidates found", n))
	}

	sim := checkResult{name: "similarity_adequacy", weight: searchWeights["similarity_adequacy"]}
	best := data.BestSimilarity()
	switch {
	case best >= 0.8:
		sim.score = 1
	case best >= 0.6:
		sim.score = 0.5 + (best-0.6)*2.5
	case best > 0:
		sim.score = best / 2
		sim.issues = append(sim.issues, fmt.Sprintf("best candidate similarity %.2f is below acceptable floor", best))
		sim.recommendations = append(sim.recommendations, "broaden search with a lower similarity threshold")
	default:
		sim.score = 0
	}
	if n >= 2 {
		if avg := data.AverageSimilarity(); avg < 0.4 {
			sim.warnings = append(sim.warnings, fmt.Sprintf("average candidate similarity %.2f indicates mostly poor matches", avg))
		}
	}

	div := checkResult{name: "result_diversity", weight: searchWeights["result_diversity"]}
	if n > 0 {
		suppliers := map[string]struct{}{}
		for _, m := range data.Matches {
			suppliers[m.Supplier] = struct{}{}
		}
		div.score = float64(len(suppliers)) / float64(n)
		if len(suppliers) == 1 && n >= 3 {
			div.warnings = append(div.warnings, "all candidates come from a single supplier")
		}
	}

	meta := checkResult{name: "metadata_completeness", weight: searchWeights["metadata_completeness"]}
	if n > 0 {
		complete := 0
		for _, m := range data.Matches {
			if m.Price > 0 && m.Supplier != "" {
				complete++
			}
		}
		meta.score = float64(complete) / float64(n)
		if meta.score < 0.5 {
			meta.warnings = append(meta.warnings, "more than half of candidates are missing price or supplier data")
		}
	}

	return []checkResult{count, sim, div, meta}
}

func matchingChecks(data *lineitem.MatchResult) []checkResult {
	conf := checkResult{name: "selection_confidence", weight: matchingWeights["selection_confidence"]}
	if data.Selected == nil {
		conf.score = 0
		conf.issues = append(conf.issues, "no part selected")
	} else {
		conf.score = clamp01(data.Confidence)
		if data.Confidence < 0.5 {
			conf.issues = append(conf.issues, fmt.Sprintf("match confidence %.2f is low", data.Confidence))
		}
	}

	biz := checkResult{name: "business_data_completeness", weight: matchingWeights["business_data_completeness"]}
	if data.Selected != nil {
		fields := 0
		if data.Selected.Price > 0 {
			fields++
		} else {
			biz.warnings = append(biz.warnings, "selected part has no price")
		}
		if data.Selected.Availability > 0 {
			fields++
		} else {
			biz.warnings = append(biz.warnings, "selected part availability is unknown or zero")
		}
		if data.Selected.Supplier != "" {
			fields++
		}
		biz.score = float64(fields) / 3.0
	}

	reason := checkResult{name: "reasoning_quality", weight: matchingWeights["reasoning_quality"]}
	switch {
	case data.Reasoning == "":
		reason.score = 0
		reason.warnings = append(reason.warnings, "matcher produced no selection reasoning")
	case len(data.Reasoning) < 30:
		reason.score = 0.5
		reason.recommendations = append(reason.recommendations, "request more detailed selection reasoning")
	default:
		reason.score = 1
	}

	price := checkResult{name: "price_sanity", weight: matchingWeights["price_sanity"]}
	if data.Selected != nil {
		switch {
		case data.Selected.Price <= 0:
			price.score = 0.3
			price.warnings = append(price.warnings, "selected part price is missing")
		case data.Selected.Price > 10_000_000:
			price.score = 0.2
			price.issues = append(price.issues, "selected part price is implausibly high")
		default:
			price.score = 1
		}
	}

	return []checkResult{conf, biz, reason, price}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
