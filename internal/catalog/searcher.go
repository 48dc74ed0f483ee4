package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/pipeline"
)

// Part is one entry in the local parts catalog.
type Part struct {
	PartNumber   string            `json:"part_number"`
	Description  string            `json:"description"`
	Price        float64           `json:"price"`
	Availability int               `json:"availability"`
	Supplier     string            `json:"supplier"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Synonyms     []string          `json:"synonyms,omitempty"`
}

// Searcher scores catalog parts against a query using token overlap.
// An alternate index built from part synonyms is consulted when the
// searcher config requests it.
type Searcher struct {
	parts []Part
}

// NewSearcher creates a searcher over the given parts.
func NewSearcher(parts []Part) *Searcher {
	return &Searcher{parts: parts}
}

// LoadSearcher reads a JSON catalog file and builds a searcher from it.
func LoadSearcher(path string) (*Searcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("catalog %s contains no parts", path)
	}
	return NewSearcher(parts), nil
}

// Search implements pipeline.Searcher.
func (s *Searcher) Search(ctx context.Context, rawText string, specs map[string]string, cfg pipeline.SearcherConfig) (*lineitem.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := tokenize(rawText)
	for _, v := range specs {
		query = append(query, tokenize(v)...)
	}
	querySet := toSet(query)

	var candidates []lineitem.Candidate
	for _, p := range s.parts {
		text := p.Description
		if cfg.UseAlternateIndex && len(p.Synonyms) > 0 {
			text += " " + strings.Join(p.Synonyms, " ")
		}
		if cfg.ExpandSynonyms && len(p.Synonyms) > 0 {
			text += " " + strings.Join(p.Synonyms, " ")
		}
		sim := overlap(querySet, toSet(tokenize(text)))
		if sim < cfg.SimilarityThreshold {
			continue
		}
		candidates = append(candidates, lineitem.Candidate{
			PartNumber:   p.PartNumber,
			Description:  p.Description,
			Similarity:   sim,
			Price:        p.Price,
			Availability: p.Availability,
			Supplier:     p.Supplier,
			Metadata:     p.Metadata,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if cfg.MaxResults > 0 && len(candidates) > cfg.MaxResults {
		candidates = candidates[:cfg.MaxResults]
	}

	return &lineitem.SearchResult{Matches: candidates}, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '.')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// overlap is the Jaccard similarity of two token sets.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
