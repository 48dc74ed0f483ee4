// Package catalog provides reference collaborator implementations backed by
// heuristics and a local parts catalog. They let matchd run end to end
// without external extraction, search, or matching services and serve as
// the default collaborators for the CLI.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/pipeline"
)

// specPattern pairs a compiled regex with the specification key it fills.
type specPattern struct {
	key   string
	regex *regexp.Regexp
}

var specPatterns = []specPattern{
	{"dimensions", regexp.MustCompile(`\d+(?:[.,]\d+)?\s*[xX×]\s*\d+(?:[.,]\d+)?(?:\s*[xX×]\s*\d+(?:[.,]\d+)?)?(?:\s*mm|\s*cm|\s*m)?`)},
	{"material", regexp.MustCompile(`(?i)\b(?:steel|stainless|aluminium|aluminum|brass|copper|plastic|PTFE|POM|PVC|1\.\d{4}|S(?:235|275|355)\w*|AISI\s*\d{3})\b`)},
	{"standard", regexp.MustCompile(`(?i)\b(?:DIN|ISO|EN|ASTM|ANSI)\s*[-]?\s*\d+\b`)},
	{"tolerance", regexp.MustCompile(`(?i)(?:±\s*\d+(?:[.,]\d+)?|\+/-\s*\d+(?:[.,]\d+)?|\b[Hh]\d{1,2}\b|\bIT\d{1,2}\b)`)},
}

var quantityPattern = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:x\b|pcs?|pieces?|stk|units?|ea)\b`)

// HeuristicExtractor extracts specifications from raw line item text using
// pattern matching. At the enhanced detail level it also scans the raw
// context for quantity and unit hints and lowers nothing.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a pattern-based extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract implements pipeline.Extractor.
func (e *HeuristicExtractor) Extract(ctx context.Context, rawText string, cfg pipeline.ExtractorConfig) (*lineitem.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, fmt.Errorf("empty line item text")
	}

	specs := make(map[string]string)
	for _, p := range specPatterns {
		if m := p.regex.FindString(text); m != "" {
			specs[p.key] = strings.TrimSpace(m)
		}
	}

	quantity := 0.0
	if m := quantityPattern.FindStringSubmatch(text); m != nil {
		quantity = parseNumber(m[1])
	}
	if quantity == 0 && cfg.DetailLevel == "enhanced" {
		// Enhanced extraction treats a bare leading number as the quantity.
		if m := regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\b`).FindStringSubmatch(text); m != nil {
			quantity = parseNumber(m[1])
		}
	}

	confidence := 0.3 + 0.15*float64(len(specs))
	if quantity > 0 {
		confidence += 0.1
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	description := text
	if idx := strings.IndexAny(description, "\n"); idx > 0 {
		description = description[:idx]
	}

	return &lineitem.ExtractionResult{
		Specs:       specs,
		Description: description,
		Quantity:    quantity,
		Confidence:  confidence,
	}, nil
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", ".")
	var v float64
	_, err := fmt.Sscanf(s, "%f", &v)
	if err != nil {
		return 0
	}
	return v
}
