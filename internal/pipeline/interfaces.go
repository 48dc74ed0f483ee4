package pipeline

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/reasoning"
)

// Extractor turns raw line item text into structured specifications.
type Extractor interface {
	Extract(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error)
}

// Searcher finds candidate parts for extracted specifications.
type Searcher interface {
	Search(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error)
}

// Matcher selects the best candidate for an item.
type Matcher interface {
	Match(ctx context.Context, item *lineitem.LineItem, candidates []lineitem.Candidate, cfg MatcherConfig) (*lineitem.MatchResult, error)
}

// Collaborators bundles the three stage implementations injected into the
// pipeline.
type Collaborators struct {
	Extractor Extractor
	Searcher  Searcher
	Matcher   Matcher
}

// Validate checks that every collaborator is present.
func (c Collaborators) Validate() error {
	if c.Extractor == nil {
		return errors.New("extractor is required")
	}
	if c.Searcher == nil {
		return errors.New("searcher is required")
	}
	if c.Matcher == nil {
		return errors.New("matcher is required")
	}
	return nil
}

// ExtractorConfig is the typed configuration passed to the extractor.
type ExtractorConfig struct {
	DetailLevel       string `json:"detail_level"`
	IncludeRawContext bool   `json:"include_raw_context"`
}

// SearcherConfig is the typed configuration passed to the searcher.
type SearcherConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxResults          int     `json:"max_results"`
	UseAlternateIndex   bool    `json:"use_alternate_index"`
	ExpandSynonyms      bool    `json:"expand_synonyms"`
}

// MatcherConfig is the typed configuration passed to the matcher.
type MatcherConfig struct {
	MinConfidence       float64 `json:"min_confidence"`
	AllowPartialMatches bool    `json:"allow_partial_matches"`
}

// CollaboratorConfigs groups the per-collaborator configurations. Each task
// works on its own copy, so retry modifications never leak across tasks.
type CollaboratorConfigs struct {
	Extractor ExtractorConfig `json:"extractor"`
	Searcher  SearcherConfig  `json:"searcher"`
	Matcher   MatcherConfig   `json:"matcher"`
}

// DefaultCollaboratorConfigs returns the baseline stage configurations.
func DefaultCollaboratorConfigs() CollaboratorConfigs {
	return CollaboratorConfigs{
		Extractor: ExtractorConfig{DetailLevel: "standard"},
		Searcher:  SearcherConfig{SimilarityThreshold: 0.6, MaxResults: 10},
		Matcher:   MatcherConfig{MinConfidence: 0.6},
	}
}

// Apply folds retry parameter modifications into the configs. Nil
// modification structs leave the corresponding collaborator untouched.
func (c *CollaboratorConfigs) Apply(mods *reasoning.Modifications) {
	if mods == nil {
		return
	}
	if m := mods.Extractor; m != nil {
		if m.DetailLevel != "" {
			c.Extractor.DetailLevel = m.DetailLevel
		}
		if m.IncludeRawContext {
			c.Extractor.IncludeRawContext = true
		}
	}
	if m := mods.Searcher; m != nil {
		if m.SimilarityThreshold != nil {
			c.Searcher.SimilarityThreshold = *m.SimilarityThreshold
		}
		if m.MaxResults != nil {
			c.Searcher.MaxResults = *m.MaxResults
		}
		if m.UseAlternateIndex {
			c.Searcher.UseAlternateIndex = true
		}
		if m.ExpandSynonyms {
			c.Searcher.ExpandSynonyms = true
		}
	}
	if m := mods.Matcher; m != nil {
		if m.MinConfidence != nil {
			c.Matcher.MinConfidence = *m.MinConfidence
		}
		if m.AllowPartialMatches {
			c.Matcher.AllowPartialMatches = true
		}
	}
}
