package qualitygate

// Stage identifies a pipeline stage whose output is gated.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageSearch     Stage = "search"
	StageMatching   Stage = "matching"
)

// AllStages returns the gated stages in pipeline order.
func AllStages() []Stage {
	return []Stage{StageExtraction, StageSearch, StageMatching}
}

// Confidence is a categorical bucket derived deterministically from a
// numeric score.
type Confidence string

const (
	ConfidenceHigh       Confidence = "high"
	ConfidenceMediumHigh Confidence = "medium_high"
	ConfidenceMedium     Confidence = "medium"
	ConfidenceMediumLow  Confidence = "medium_low"
	ConfidenceLow        Confidence = "low"
)

// ConfidenceForScore maps a score in [0,1] to its confidence bucket.
// The mapping is a pure function of the score.
func ConfidenceForScore(score float64) Confidence {
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.8:
		return ConfidenceMediumHigh
	case score >= 0.7:
		return ConfidenceMedium
	case score >= 0.6:
		return ConfidenceMediumLow
	default:
		return ConfidenceLow
	}
}

// Result is the outcome of gating one stage's output.
type Result struct {
	Passed          bool       `json:"passed"`
	Score           float64    `json:"score"`
	Threshold       float64    `json:"threshold"`
	Stage           Stage      `json:"stage"`
	Issues          []string   `json:"issues,omitempty"`
	Warnings        []string   `json:"warnings,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	Confidence      Confidence `json:"confidence"`
}

// Statistics is a snapshot of evaluator activity since construction.
type Statistics struct {
	Stages map[Stage]StageStatistics `json:"stages"`
}

// StageStatistics aggregates gate outcomes for one stage.
type StageStatistics struct {
	Evaluations int     `json:"evaluations"`
	Passed      int     `json:"passed"`
	PassRate    float64 `json:"pass_rate"`
	MeanScore   float64 `json:"mean_score"`
}
