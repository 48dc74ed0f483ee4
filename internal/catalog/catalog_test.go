package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/pipeline"
)

func testParts() []Part {
	return []Part{
		{
			PartNumber:   "HB-8040-A2",
			Description:  "hex bolt M8x40 DIN 933 stainless steel A2",
			Price:        0.12,
			Availability: 5000,
			Supplier:     "FastenerCo",
			Synonyms:     []string{"screw", "machine bolt"},
		},
		{
			PartNumber:   "FW-8-A2",
			Description:  "flat washer M8 DIN 125 stainless steel A2",
			Price:        0.03,
			Availability: 20000,
			Supplier:     "FastenerCo",
		},
		{
			PartNumber:   "GK-DN50",
			Description:  "flange gasket DN50 PN16 EPDM",
			Price:        1.80,
			Availability: 400,
			Supplier:     "SealTech",
		},
	}
}

func TestHeuristicExtractor(t *testing.T) {
	ex := NewHeuristicExtractor()

	t.Run("structured line item", func(t *testing.T) {
		result, err := ex.Extract(context.Background(),
			"100 pcs hex bolt M8x40 DIN 933 stainless 1.4301, plate 40 x 40 x 3 mm, ±0.1",
			pipeline.ExtractorConfig{DetailLevel: "standard"})
		require.NoError(t, err)

		assert.Equal(t, 100.0, result.Quantity)
		assert.Contains(t, result.Specs, "standard")
		assert.Contains(t, result.Specs, "material")
		assert.Contains(t, result.Specs, "dimensions")
		assert.Contains(t, result.Specs, "tolerance")
		assert.NotEmpty(t, result.Description)
		assert.Greater(t, result.Confidence, 0.5)
	})

	t.Run("empty text is an error", func(t *testing.T) {
		_, err := ex.Extract(context.Background(), "   ", pipeline.ExtractorConfig{})
		assert.Error(t, err)
	})

	t.Run("enhanced level picks up bare leading quantity", func(t *testing.T) {
		standard, err := ex.Extract(context.Background(), "12 gaskets for pump housing",
			pipeline.ExtractorConfig{DetailLevel: "standard"})
		require.NoError(t, err)

		enhanced, err := ex.Extract(context.Background(), "12 gaskets for pump housing",
			pipeline.ExtractorConfig{DetailLevel: "enhanced"})
		require.NoError(t, err)

		assert.Equal(t, 0.0, standard.Quantity)
		assert.Equal(t, 12.0, enhanced.Quantity)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ex.Extract(ctx, "anything", pipeline.ExtractorConfig{})
		assert.Error(t, err)
	})
}

func TestSearcher(t *testing.T) {
	s := NewSearcher(testParts())

	t.Run("relevant query ranks the right part first", func(t *testing.T) {
		result, err := s.Search(context.Background(), "hex bolt M8x40 stainless",
			map[string]string{"standard": "DIN 933"},
			pipeline.SearcherConfig{SimilarityThreshold: 0.1, MaxResults: 10})
		require.NoError(t, err)

		require.NotEmpty(t, result.Matches)
		assert.Equal(t, "HB-8040-A2", result.Matches[0].PartNumber)
		for i := 1; i < len(result.Matches); i++ {
			assert.GreaterOrEqual(t, result.Matches[i-1].Similarity, result.Matches[i].Similarity)
		}
	})

	t.Run("threshold filters weak candidates", func(t *testing.T) {
		result, err := s.Search(context.Background(), "hydraulic pump seal kit", nil,
			pipeline.SearcherConfig{SimilarityThreshold: 0.9, MaxResults: 10})
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
	})

	t.Run("max results caps the candidate list", func(t *testing.T) {
		result, err := s.Search(context.Background(), "stainless steel DIN", nil,
			pipeline.SearcherConfig{SimilarityThreshold: 0.01, MaxResults: 1})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(result.Matches), 1)
	})

	t.Run("synonym expansion finds synonym-only hits", func(t *testing.T) {
		strict, err := s.Search(context.Background(), "machine screw m8", nil,
			pipeline.SearcherConfig{SimilarityThreshold: 0.15, MaxResults: 10})
		require.NoError(t, err)

		expanded, err := s.Search(context.Background(), "machine screw m8", nil,
			pipeline.SearcherConfig{SimilarityThreshold: 0.15, MaxResults: 10, ExpandSynonyms: true})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(expanded.Matches), len(strict.Matches))
	})
}

func TestLoadSearcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	data, err := json.Marshal(testParts())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := LoadSearcher(path)
	require.NoError(t, err)
	assert.Len(t, s.parts, 3)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSearcher(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})

	t.Run("empty catalog", func(t *testing.T) {
		empty := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o600))
		_, err := LoadSearcher(empty)
		assert.Error(t, err)
	})
}

func TestGreedyMatcher(t *testing.T) {
	m := NewGreedyMatcher()
	item := &lineitem.LineItem{ID: "item-1", RawText: "hex bolt M8x40"}

	t.Run("selects the best candidate", func(t *testing.T) {
		candidates := []lineitem.Candidate{
			{PartNumber: "A", Similarity: 0.7, Price: 1, Availability: 10},
			{PartNumber: "B", Similarity: 0.9, Price: 1, Availability: 10},
		}
		result, err := m.Match(context.Background(), item, candidates,
			pipeline.MatcherConfig{MinConfidence: 0.6})
		require.NoError(t, err)
		require.NotNil(t, result.Selected)
		assert.Equal(t, "B", result.Selected.PartNumber)
		assert.NotEmpty(t, result.Reasoning)
	})

	t.Run("no candidates yields no selection", func(t *testing.T) {
		result, err := m.Match(context.Background(), item, nil,
			pipeline.MatcherConfig{MinConfidence: 0.6})
		require.NoError(t, err)
		assert.Nil(t, result.Selected)
		assert.Zero(t, result.Confidence)
	})

	t.Run("below minimum confidence declines", func(t *testing.T) {
		candidates := []lineitem.Candidate{{PartNumber: "A", Similarity: 0.2}}
		result, err := m.Match(context.Background(), item, candidates,
			pipeline.MatcherConfig{MinConfidence: 0.6})
		require.NoError(t, err)
		assert.Nil(t, result.Selected)
	})

	t.Run("partial matches accepted when allowed", func(t *testing.T) {
		candidates := []lineitem.Candidate{{PartNumber: "A", Similarity: 0.4, Price: 1, Availability: 5}}
		result, err := m.Match(context.Background(), item, candidates,
			pipeline.MatcherConfig{MinConfidence: 0.6, AllowPartialMatches: true})
		require.NoError(t, err)
		require.NotNil(t, result.Selected)
		assert.Contains(t, result.Reasoning, "partial match")
	})
}
