package models

import (
	"time"
)

// Priority ranks an Insight for display
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities; higher is more urgent
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Insight is a derived diagnosis for one failure pattern. Never persisted on its own.
type Insight struct {
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	AffectedTests   []string `json:"affectedTests"`
	Recommendations []string `json:"recommendations"`
	Priority        Priority `json:"priority"`
	Count           int      `json:"count"`
}

// TrendingPattern is one category ranked across historical runs
type TrendingPattern struct {
	Category  Category `json:"category"`
	Count     int      `json:"count"`
	Frequency float64  `json:"frequency"` // share of all historical failures
	Examples  []string `json:"examples"`
}

// HistoricalAnalysis is computed over many runs
type HistoricalAnalysis struct {
	TotalRuns          int               `json:"totalRuns"`
	AverageFailureRate float64           `json:"averageFailureRate"`
	TrendingPatterns   []TrendingPattern `json:"trendingPatterns"`
	FlakyTests         []string          `json:"flakyTests"`
	ConsistentFailures []string          `json:"consistentFailures"`
	AnalyzedAt         time.Time         `json:"analyzedAt"`
}
