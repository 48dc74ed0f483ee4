package reasoning

import (
	"sync"
	"time"
)

// emaAlpha is the smoothing factor for the per-strategy success-rate moving
// average.
const emaAlpha = 0.1

// defaultHistoryCapacity bounds the retry history ring.
const defaultHistoryCapacity = 256

// Learning maintains process-wide per-strategy success rates and a bounded
// history of retry outcomes. Every pipeline task updates it from its own
// goroutine, so all state lives behind one mutex.
type Learning struct {
	mu      sync.Mutex
	rates   map[Strategy]*strategyState
	history []RetryRecord
	head    int
	size    int
}

type strategyState struct {
	attempts  int64
	successes int64
	rate      float64
}

// NewLearning creates an empty learning table with the default history
// capacity.
func NewLearning() *Learning {
	return &Learning{
		rates:   make(map[Strategy]*strategyState),
		history: make([]RetryRecord, defaultHistoryCapacity),
	}
}

// UpdateSuccessRate records one retry outcome for a strategy. The smoothed
// rate is an exponential moving average seeded at 0.5.
func (l *Learning) UpdateSuccessRate(strategy Strategy, success bool) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.rates[strategy]
	if !ok {
		state = &strategyState{rate: 0.5}
		l.rates[strategy] = state
	}
	state.attempts++
	if success {
		state.successes++
	}
	state.rate += emaAlpha * (outcome - state.rate)

	l.history[l.head] = RetryRecord{Strategy: strategy, Success: success, At: time.Now()}
	l.head = (l.head + 1) % len(l.history)
	if l.size < len(l.history) {
		l.size++
	}
}

// SuccessRate returns the learned rate for a strategy and whether any
// outcome has been recorded for it.
func (l *Learning) SuccessRate(strategy Strategy) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.rates[strategy]
	if !ok || state.attempts == 0 {
		return 0, false
	}
	return state.rate, true
}

// Statistics returns a snapshot of the learning state. History entries are
// returned oldest first.
func (l *Learning) Statistics() LearningStatistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := LearningStatistics{
		Strategies: make(map[Strategy]StrategyStatistics, len(l.rates)),
		History:    make([]RetryRecord, 0, l.size),
	}
	for strategy, state := range l.rates {
		stats.Strategies[strategy] = StrategyStatistics{
			Attempts:    state.attempts,
			Successes:   state.successes,
			SuccessRate: state.rate,
		}
	}

	start := 0
	if l.size == len(l.history) {
		start = l.head
	}
	for i := 0; i < l.size; i++ {
		stats.History = append(stats.History, l.history[(start+i)%len(l.history)])
	}
	return stats
}
