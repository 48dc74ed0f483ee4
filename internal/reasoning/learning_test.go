package reasoning

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessRateUnknownStrategy(t *testing.T) {
	l := NewLearning()
	_, ok := l.SuccessRate(StrategyFuzzyMatching)
	assert.False(t, ok)
}

func TestUpdateSuccessRateEMA(t *testing.T) {
	l := NewLearning()

	// First outcome moves the seed of 0.5 by alpha toward the observation.
	l.UpdateSuccessRate(StrategyBroadenedSearch, true)
	rate, ok := l.SuccessRate(StrategyBroadenedSearch)
	require.True(t, ok)
	assert.InDelta(t, 0.5+0.1*(1.0-0.5), rate, 1e-12)

	l.UpdateSuccessRate(StrategyBroadenedSearch, false)
	rate, _ = l.SuccessRate(StrategyBroadenedSearch)
	assert.InDelta(t, 0.55+0.1*(0.0-0.55), rate, 1e-12)
}

func TestUpdateSuccessRateConvergence(t *testing.T) {
	l := NewLearning()

	for i := 0; i < 200; i++ {
		l.UpdateSuccessRate(StrategyEnhancedExtraction, true)
	}
	rate, _ := l.SuccessRate(StrategyEnhancedExtraction)
	assert.Greater(t, rate, 0.95)
	assert.LessOrEqual(t, rate, 1.0)

	for i := 0; i < 200; i++ {
		l.UpdateSuccessRate(StrategyEnhancedExtraction, false)
	}
	rate, _ = l.SuccessRate(StrategyEnhancedExtraction)
	assert.Less(t, rate, 0.05)
	assert.GreaterOrEqual(t, rate, 0.0)
}

func TestStatisticsCountsAndHistory(t *testing.T) {
	l := NewLearning()

	l.UpdateSuccessRate(StrategyBroadenedSearch, true)
	l.UpdateSuccessRate(StrategyBroadenedSearch, false)
	l.UpdateSuccessRate(StrategyFuzzyMatching, true)

	stats := l.Statistics()
	bs := stats.Strategies[StrategyBroadenedSearch]
	assert.Equal(t, int64(2), bs.Attempts)
	assert.Equal(t, int64(1), bs.Successes)

	require.Len(t, stats.History, 3)
	// Oldest first.
	assert.Equal(t, StrategyBroadenedSearch, stats.History[0].Strategy)
	assert.True(t, stats.History[0].Success)
	assert.Equal(t, StrategyFuzzyMatching, stats.History[2].Strategy)
}

func TestHistoryRingIsBounded(t *testing.T) {
	l := NewLearning()

	for i := 0; i < defaultHistoryCapacity+50; i++ {
		l.UpdateSuccessRate(StrategyBroadenedSearch, i%2 == 0)
	}

	stats := l.Statistics()
	assert.Len(t, stats.History, defaultHistoryCapacity)
	assert.Equal(t, int64(defaultHistoryCapacity+50), stats.Strategies[StrategyBroadenedSearch].Attempts)
}

func TestLearningConcurrentUpdates(t *testing.T) {
	l := NewLearning()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(success bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.UpdateSuccessRate(StrategyMultiStrategy, success)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	stats := l.Statistics()
	assert.Equal(t, int64(800), stats.Strategies[StrategyMultiStrategy].Attempts)
	rate, ok := l.SuccessRate(StrategyMultiStrategy)
	require.True(t, ok)
	assert.GreaterOrEqual(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 1.0)
}
