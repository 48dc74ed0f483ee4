package reasoning

import (
	"regexp"
	"strings"
	"unicode"
)

// Complexity feature increments. Each feature contributes a fixed amount;
// the total is capped at 1.0.
const (
	complexityShortText     = 0.30
	complexityGarbled       = 0.20
	complexityDimensions    = 0.15
	complexityMaterialGrade = 0.15
	complexityTolerance     = 0.15
	complexityCustom        = 0.20
	complexityCertification = 0.10
	complexityLongWords     = 0.10
)

var (
	dimensionTriple = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*[xX×]\s*\d+(?:[.,]\d+)?(?:\s*[xX×]\s*\d+(?:[.,]\d+)?)?`)
	materialGrade   = regexp.MustCompile(`(?i)\b(?:1\.\d{4}|S(?:235|275|355)\w*|AISI\s*\d{3}|A\d{3}\b|C\d{2}\b|grade\s*\w?\d+|V[24]A)\b`)
	toleranceMarker = regexp.MustCompile(`(?i)(?:±|\+/-|\btoleran|\b[Hh]\d{1,2}\b|\bIT\d{1,2}\b|\bprecision\b)`)
	customKeyword   = regexp.MustCompile(`(?i)\b(?:custom|bespoke|special|modified|non.?standard|per\s+drawing|sonder)\b`)
	certKeyword     = regexp.MustCompile(`(?i)\b(?:certif|DIN\s*\d*|ISO\s*\d+|EN\s*\d+|ASTM|3\.1\b|material\s+cert|traceab)`)
)

// ComplexityScore estimates how hard a line item is to process from its raw
// text, in [0,1]. Short or garbled text is penalized (little to work with);
// technical markers such as dimension triples, material grades, tolerances,
// customization, and certification requirements each add a fixed increment.
func ComplexityScore(rawText string) float64 {
	score := 0.0
	trimmed := strings.TrimSpace(rawText)

	if len(trimmed) < 20 {
		score += complexityShortText
	}
	if garbledText(trimmed) {
		score += complexityGarbled
	}
	if dimensionTriple.MatchString(trimmed) {
		score += complexityDimensions
	}
	if materialGrade.MatchString(trimmed) {
		score += complexityMaterialGrade
	}
	if toleranceMarker.MatchString(trimmed) {
		score += complexityTolerance
	}
	if customKeyword.MatchString(trimmed) {
		score += complexityCustom
	}
	if certKeyword.MatchString(trimmed) {
		score += complexityCertification
	}
	if hasLongTechnicalWord(trimmed) {
		score += complexityLongWords
	}

	if score > 1 {
		score = 1
	}
	return score
}

// garbledText reports whether fewer than half of the non-space characters
// are letters or digits, a sign of placeholder noise or OCR junk such as
// "???" that no extractor can work with.
func garbledText(text string) bool {
	total, alnum := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return total > 0 && float64(alnum)/float64(total) < 0.5
}

// hasLongTechnicalWord reports whether the text contains a word of 12+
// letters, a proxy for compound technical terms.
func hasLongTechnicalWord(text string) bool {
	for _, word := range strings.Fields(text) {
		letters := 0
		for _, r := range word {
			if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127 {
				letters++
			}
		}
		if letters >= 12 {
			return true
		}
	}
	return false
}
