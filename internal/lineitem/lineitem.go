// Package lineitem defines the domain types shared across the matching
// pipeline: the line item itself and the results produced by the three
// collaborator stages (extraction, search, match).
package lineitem

// Urgency indicates how time-critical a line item is. It feeds into
// contextual threshold adjustment and failure analysis.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// LineItem is one requested material or part extracted from a source
// document. RawText is the verbatim text the item was extracted from and is
// the input to specification extraction and failure analysis.
type LineItem struct {
	ID       string            `json:"id"`
	RawText  string            `json:"raw_text"`
	Quantity float64           `json:"quantity,omitempty"`
	Unit     string            `json:"unit,omitempty"`
	Urgency  Urgency           `json:"urgency,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ExtractionResult is the output of the specification extraction stage.
// Specs maps normalized specification keys (material, dimensions, standard,
// tolerance, ...) to extracted values.
type ExtractionResult struct {
	Specs       map[string]string `json:"specs"`
	Description string            `json:"description"`
	Quantity    float64           `json:"quantity"`
	Confidence  float64           `json:"confidence"`
}

// Candidate is one part returned by the candidate search stage.
type Candidate struct {
	PartNumber   string            `json:"part_number"`
	Description  string            `json:"description"`
	Similarity   float64           `json:"similarity"`
	Price        float64           `json:"price,omitempty"`
	Availability int               `json:"availability,omitempty"`
	Supplier     string            `json:"supplier,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SearchResult is the output of the candidate search stage.
type SearchResult struct {
	Matches []Candidate `json:"matches"`
}

// BestSimilarity returns the highest similarity among the matches, or 0 if
// there are none.
func (r *SearchResult) BestSimilarity() float64 {
	best := 0.0
	for _, m := range r.Matches {
		if m.Similarity > best {
			best = m.Similarity
		}
	}
	return best
}

// AverageSimilarity returns the mean similarity across matches, or 0 if
// there are none.
func (r *SearchResult) AverageSimilarity() float64 {
	if len(r.Matches) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range r.Matches {
		sum += m.Similarity
	}
	return sum / float64(len(r.Matches))
}

// MatchResult is the output of the match selection stage. Selected is nil
// when the matcher declined to pick a candidate.
type MatchResult struct {
	Selected   *Candidate `json:"selected,omitempty"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
}
