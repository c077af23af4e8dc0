package models

import (
	"time"
)

// TestOutcome is the final status of one test in a run
type TestOutcome string

const (
	OutcomePassed  TestOutcome = "passed"
	OutcomeFailed  TestOutcome = "failed"
	OutcomeSkipped TestOutcome = "skipped"
)

// RunSummary aggregates one session's test outcomes
type RunSummary struct {
	SessionID  string    `json:"sessionId"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	TotalTests int       `json:"totalTests"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Projects   []string  `json:"projects,omitempty"`
	Retries    int       `json:"retries"` // configured page-operation retries for the run
}

// FailureRate is failed/total, or 0 for an empty run
func (s RunSummary) FailureRate() float64 {
	if s.TotalTests == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.TotalTests)
}

// Duration is the wall-clock length of the run
func (s RunSummary) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// RunDump is the persisted companion of a run: its summary plus every failure.
// This is the unit written to errors-<timestamp>.json and to the run archive.
type RunDump struct {
	Summary  RunSummary      `json:"summary"`
	Failures []FailureRecord `json:"failures"`
}

// FailingTests returns the distinct failing test names in first-seen order
func (d RunDump) FailingTests() []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range d.Failures {
		name := f.Context.TestName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
