package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/matchd/internal/lineitem"
	"github.com/fyrsmithlabs/matchd/internal/qualitygate"
)

// stubExtractor, stubSearcher, and stubMatcher adapt plain functions to the
// collaborator interfaces.
type stubExtractor struct {
	fn func(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error)
}

func (s *stubExtractor) Extract(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error) {
	return s.fn(ctx, rawText, cfg)
}

type stubSearcher struct {
	fn func(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error)
}

func (s *stubSearcher) Search(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error) {
	return s.fn(ctx, rawText, specs, cfg)
}

type stubMatcher struct {
	fn func(ctx context.Context, item *lineitem.LineItem, candidates []lineitem.Candidate, cfg MatcherConfig) (*lineitem.MatchResult, error)
}

func (s *stubMatcher) Match(ctx context.Context, item *lineitem.LineItem, candidates []lineitem.Candidate, cfg MatcherConfig) (*lineitem.MatchResult, error) {
	return s.fn(ctx, item, candidates, cfg)
}

func passingExtraction() *lineitem.ExtractionResult {
	return &lineitem.ExtractionResult{
		Specs: map[string]string{
			"material":   "stainless steel 1.4301",
			"dimensions": "40 x 40 x 3 mm",
			"standard":   "DIN 933",
			"tolerance":  "±0.1",
		},
		Description: "Hex bolt M8x40 stainless steel DIN 933",
		Quantity:    100,
		Confidence:  0.9,
	}
}

func passingSearch() *lineitem.SearchResult {
	return &lineitem.SearchResult{
		Matches: []lineitem.Candidate{
			{PartNumber: "HB-8040-A2", Similarity: 0.92, Price: 0.12, Availability: 5000, Supplier: "FastenerCo"},
			{PartNumber: "HB-8040-A4", Similarity: 0.88, Price: 0.18, Availability: 2000, Supplier: "BoltWorks"},
			{PartNumber: "HB-8045-A2", Similarity: 0.81, Price: 0.13, Availability: 800, Supplier: "FastenerCo"},
			{PartNumber: "HB-8035-A2", Similarity: 0.78, Price: 0.11, Availability: 1200, Supplier: "MetalMart"},
			{PartNumber: "HB-8040-ZN", Similarity: 0.75, Price: 0.08, Availability: 9000, Supplier: "BoltWorks"},
		},
	}
}

func passingMatch(candidates []lineitem.Candidate) *lineitem.MatchResult {
	return &lineitem.MatchResult{
		Selected:   &candidates[0],
		Confidence: 0.92,
		Reasoning:  "highest similarity candidate with full availability and price data",
	}
}

// happyCollaborators route every item straight through to a confident match.
func happyCollaborators() Collaborators {
	return Collaborators{
		Extractor: &stubExtractor{fn: func(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error) {
			return passingExtraction(), nil
		}},
		Searcher: &stubSearcher{fn: func(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error) {
			return passingSearch(), nil
		}},
		Matcher: &stubMatcher{fn: func(ctx context.Context, item *lineitem.LineItem, candidates []lineitem.Candidate, cfg MatcherConfig) (*lineitem.MatchResult, error) {
			return passingMatch(candidates), nil
		}},
	}
}

func testItems(n int) []lineitem.LineItem {
	items := make([]lineitem.LineItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, lineitem.LineItem{
			ID:       fmt.Sprintf("item-%d", i),
			RawText:  "100 pcs hex bolt M8 zinc plated",
			Quantity: 100,
		})
	}
	return items
}

func TestNewServiceValidation(t *testing.T) {
	t.Run("missing collaborators", func(t *testing.T) {
		_, err := NewService(DefaultConfig(), Collaborators{}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("bad concurrency", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxConcurrency = 0
		_, err := NewService(cfg, happyCollaborators(), zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxRetries = -1
		_, err := NewService(cfg, happyCollaborators(), zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unknown profile", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Profile = qualitygate.Profile("draconian")
		_, err := NewService(cfg, happyCollaborators(), zap.NewNop())
		assert.Error(t, err)
	})
}

func TestProcessBatchEmptyInput(t *testing.T) {
	svc, err := NewService(DefaultConfig(), happyCollaborators(), zap.NewNop())
	require.NoError(t, err)

	_, err = svc.ProcessBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestProcessBatchHappyPath(t *testing.T) {
	svc, err := NewService(DefaultConfig(), happyCollaborators(), zap.NewNop())
	require.NoError(t, err)

	result, err := svc.ProcessBatch(context.Background(), testItems(3))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Statistics.TotalItems)
	assert.Equal(t, 3, result.Statistics.CompletedSuccessfully)
	assert.Equal(t, 0, result.Statistics.RequiresReview)
	assert.Equal(t, 0, result.Statistics.Failed)

	for i := 0; i < 3; i++ {
		outcome, ok := result.Matches[fmt.Sprintf("item-%d", i)]
		require.True(t, ok)
		assert.Equal(t, StateMatched, outcome.State)
		assert.Equal(t, 0, outcome.RetryCount)
		require.NotNil(t, outcome.Match)
		assert.Equal(t, "HB-8040-A2", outcome.Match.Selected.PartNumber)
	}
}

func TestProcessBatchConcurrencyBound(t *testing.T) {
	const bound = 2
	var inFlight atomic.Int64
	var peak atomic.Int64

	collabs := happyCollaborators()
	collabs.Extractor = &stubExtractor{fn: func(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return passingExtraction(), nil
	}}

	cfg := DefaultConfig()
	cfg.MaxConcurrency = bound
	svc, err := NewService(cfg, collabs, zap.NewNop())
	require.NoError(t, err)

	result, err := svc.ProcessBatch(context.Background(), testItems(6))
	require.NoError(t, err)

	assert.Equal(t, 6, result.Statistics.CompletedSuccessfully)
	assert.LessOrEqual(t, peak.Load(), int64(bound))
}

func TestProcessBatchRetriesThenManualReview(t *testing.T) {
	var searchCalls atomic.Int64

	collabs := happyCollaborators()
	collabs.Searcher = &stubSearcher{fn: func(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error) {
		searchCalls.Add(1)
		return &lineitem.SearchResult{}, nil
	}}

	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	svc, err := NewService(cfg, collabs, zap.NewNop())
	require.NoError(t, err)

	result, err := svc.ProcessBatch(context.Background(), testItems(1))
	require.NoError(t, err)

	outcome := result.Matches["item-0"]
	require.NotNil(t, outcome)
	assert.Equal(t, StateManualReview, outcome.State)
	assert.Equal(t, 1, outcome.RetryCount)
	assert.Contains(t, outcome.Issues, "no search results found")
	assert.Contains(t, outcome.Issues, "retries exhausted after 1 attempts")
	assert.NotEmpty(t, outcome.Reasoning)
	// One initial attempt plus one retry, each re-running the full pipeline.
	assert.Equal(t, int64(2), searchCalls.Load())

	assert.Equal(t, 1, result.Statistics.RequiresReview)
	assert.Equal(t, 0, result.Statistics.Failed)
}

func TestProcessBatchRetryModifiesSearcherConfig(t *testing.T) {
	var mu sync.Mutex
	var thresholds []float64

	collabs := happyCollaborators()
	collabs.Searcher = &stubSearcher{fn: func(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error) {
		mu.Lock()
		thresholds = append(thresholds, cfg.SimilarityThreshold)
		mu.Unlock()
		return &lineitem.SearchResult{}, nil
	}}

	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	svc, err := NewService(cfg, collabs, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.ProcessBatch(context.Background(), testItems(1))
	require.NoError(t, err)

	require.Len(t, thresholds, 2)
	assert.InDelta(t, 0.6, thresholds[0], 1e-12)
	// The broadened-search retry lowers the similarity threshold.
	assert.Less(t, thresholds[1], thresholds[0])
}

func TestProcessBatchCollaboratorErrorFailsOnlyThatTask(t *testing.T) {
	collabs := happyCollaborators()
	collabs.Extractor = &stubExtractor{fn: func(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error) {
		if rawText == "broken" {
			return nil, errors.New("upstream extraction unavailable")
		}
		return passingExtraction(), nil
	}}

	items := testItems(2)
	items = append(items, lineitem.LineItem{ID: "item-broken", RawText: "broken"})

	svc, err := NewService(DefaultConfig(), collabs, zap.NewNop())
	require.NoError(t, err)

	result, err := svc.ProcessBatch(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Statistics.CompletedSuccessfully)
	assert.Equal(t, 1, result.Statistics.Failed)

	broken := result.Matches["item-broken"]
	require.NotNil(t, broken)
	assert.Equal(t, StateFailed, broken.State)
	assert.Contains(t, broken.Error, "extractor")
}

func TestProcessBatchPanicIsIsolated(t *testing.T) {
	collabs := happyCollaborators()
	collabs.Matcher = &stubMatcher{fn: func(ctx context.Context, item *lineitem.LineItem, candidates []lineitem.Candidate, cfg MatcherConfig) (*lineitem.MatchResult, error) {
		if item.ID == "item-1" {
			panic("matcher exploded")
		}
		return passingMatch(candidates), nil
	}}

	svc, err := NewService(DefaultConfig(), collabs, zap.NewNop())
	require.NoError(t, err)

	result, err := svc.ProcessBatch(context.Background(), testItems(3))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Statistics.CompletedSuccessfully)
	assert.Equal(t, 1, result.Statistics.Failed)

	panicked := result.Matches["item-1"]
	require.NotNil(t, panicked)
	assert.Equal(t, StateFailed, panicked.State)
	assert.Contains(t, panicked.Error, "panic")
	assert.Contains(t, panicked.Error, "matcher exploded")
}

func TestProcessBatchCanceledContext(t *testing.T) {
	svc, err := NewService(DefaultConfig(), happyCollaborators(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.ProcessBatch(ctx, testItems(4))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Statistics.Failed)
	for _, outcome := range result.Matches {
		assert.Equal(t, StateFailed, outcome.State)
	}
}

func TestProcessBatchTaskTimeout(t *testing.T) {
	collabs := happyCollaborators()
	collabs.Extractor = &stubExtractor{fn: func(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error) {
		select {
		case <-time.After(5 * time.Second):
			return passingExtraction(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}

	cfg := DefaultConfig()
	cfg.TaskTimeout = 50 * time.Millisecond
	svc, err := NewService(cfg, collabs, zap.NewNop())
	require.NoError(t, err)

	result, err := svc.ProcessBatch(context.Background(), testItems(1))
	require.NoError(t, err)

	outcome := result.Matches["item-0"]
	require.NotNil(t, outcome)
	assert.Equal(t, StateFailed, outcome.State)
}

func TestProcessBatchProgressCallback(t *testing.T) {
	var mu sync.Mutex
	var events []Progress

	cfg := DefaultConfig()
	cfg.OnProgress = func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}

	svc, err := NewService(cfg, happyCollaborators(), zap.NewNop())
	require.NoError(t, err)

	_, err = svc.ProcessBatch(context.Background(), testItems(5))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 5)
	for _, event := range events {
		assert.Equal(t, 5, event.Total)
		assert.True(t, event.State.Terminal())
	}
	seen := make(map[int]bool)
	for _, event := range events {
		seen[event.Completed] = true
	}
	for i := 1; i <= 5; i++ {
		assert.True(t, seen[i], "completed count %d missing", i)
	}
}

func TestProcessBatchPriorityFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriorityFor = func(item *lineitem.LineItem) Priority {
		if item.Urgency == lineitem.UrgencyCritical {
			return PriorityHigh
		}
		return PriorityLow
	}

	svc, err := NewService(cfg, happyCollaborators(), zap.NewNop())
	require.NoError(t, err)

	items := testItems(2)
	items[1].Urgency = lineitem.UrgencyCritical

	result, err := svc.ProcessBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Statistics.CompletedSuccessfully)
}

func TestProcessBatchStartOrderFollowsPriority(t *testing.T) {
	var mu sync.Mutex
	var started []string

	collabs := happyCollaborators()
	collabs.Extractor = &stubExtractor{fn: func(ctx context.Context, rawText string, cfg ExtractorConfig) (*lineitem.ExtractionResult, error) {
		mu.Lock()
		started = append(started, rawText)
		mu.Unlock()
		return passingExtraction(), nil
	}}

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	cfg.PriorityFor = func(item *lineitem.LineItem) Priority {
		switch {
		case strings.HasPrefix(item.ID, "high"):
			return PriorityHigh
		case strings.HasPrefix(item.ID, "low"):
			return PriorityLow
		default:
			return PriorityMedium
		}
	}

	svc, err := NewService(cfg, collabs, zap.NewNop())
	require.NoError(t, err)

	var items []lineitem.LineItem
	for _, id := range []string{"low-1", "high-1", "medium-1", "high-2", "medium-2", "low-2"} {
		items = append(items, lineitem.LineItem{ID: id, RawText: id, Quantity: 100})
	}

	_, err = svc.ProcessBatch(context.Background(), items)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high-1", "high-2", "medium-1", "medium-2", "low-1", "low-2"}, started)
}

func TestUpdateSuccessRateFedByOutcomes(t *testing.T) {
	collabs := happyCollaborators()
	collabs.Searcher = &stubSearcher{fn: func(ctx context.Context, rawText string, specs map[string]string, cfg SearcherConfig) (*lineitem.SearchResult, error) {
		return &lineitem.SearchResult{}, nil
	}}

	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	svc, err := NewService(cfg, collabs, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.ProcessBatch(context.Background(), testItems(1))
	require.NoError(t, err)

	stats := svc.Reasoning().GetLearningStatistics()
	assert.NotEmpty(t, stats.Strategies)
	total := int64(0)
	for _, s := range stats.Strategies {
		total += s.Attempts
	}
	assert.Greater(t, total, int64(0))
}
