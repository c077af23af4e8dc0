package models

import (
	"time"
)

// FailureRecord is one structured entry describing a single test failure.
// Records are never modified after creation except for Recovery.
type FailureRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Stack     string         `json:"stack,omitempty"`
	Context   FailureContext `json:"context"`
	Artifacts []string       `json:"artifacts,omitempty"` // screenshot/video/trace references
	Recovery  Recovery       `json:"recovery"`
}

// FailureContext is the structured snapshot attached to a failure
type FailureContext struct {
	URL        string            `json:"url,omitempty"`
	TestName   string            `json:"testName"`
	TestFile   string            `json:"testFile,omitempty"`
	Project    string            `json:"project,omitempty"` // browser/environment the test ran under
	RetryCount int               `json:"retryCount,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Details    *CategoryDetails  `json:"details,omitempty"`
	Snapshot   *ContextSnapshot  `json:"snapshot,omitempty"`
	Omitted    []string          `json:"omitted,omitempty"` // capture steps that failed or timed out
}

// DetailKind tags which payload a CategoryDetails carries
type DetailKind string

const (
	DetailKindStrictMode DetailKind = "strict_mode"
	DetailKindAssertion  DetailKind = "assertion"
)

// CategoryDetails is a tagged union of category-specific payloads.
// Exactly one of StrictMode or Assertion is set, matching Kind.
type CategoryDetails struct {
	Kind       DetailKind         `json:"kind"`
	StrictMode *StrictModeDetails `json:"strictModeDetails,omitempty"`
	Assertion  *AssertionDetails  `json:"assertionDetails,omitempty"`
}

// StrictModeDetails describes a selector that matched more than one element
type StrictModeDetails struct {
	Selector      string   `json:"selector,omitempty"`
	ElementsFound int      `json:"elementsFound"`
	Elements      []string `json:"elements,omitempty"`
	SuggestedFix  string   `json:"suggestedFix"`
}

// AssertionDetails describes a failed comparison from a wrapped assertion
type AssertionDetails struct {
	Operation     string `json:"operation"`
	ExpectedValue string `json:"expectedValue"`
	ActualValue   string `json:"actualValue"`
	SuggestedFix  string `json:"suggestedFix"`
}

// Recovery is the outcome of an externally-executed retry or mitigation
type Recovery struct {
	Attempted  bool     `json:"attempted"`
	Strategies []string `json:"strategies,omitempty"`
	Successful bool     `json:"successful"`
	Attempts   int      `json:"attempts"`
}

// NewStrictModeDetails wraps d as a CategoryDetails
func NewStrictModeDetails(d *StrictModeDetails) *CategoryDetails {
	if d == nil {
		return nil
	}
	return &CategoryDetails{Kind: DetailKindStrictMode, StrictMode: d}
}

// NewAssertionCategoryDetails wraps d as a CategoryDetails
func NewAssertionCategoryDetails(d *AssertionDetails) *CategoryDetails {
	if d == nil {
		return nil
	}
	return &CategoryDetails{Kind: DetailKindAssertion, Assertion: d}
}

// Clone returns a deep copy so that callers cannot mutate store-owned state
func (r FailureRecord) Clone() FailureRecord {
	out := r
	out.Artifacts = cloneStrings(r.Artifacts)
	out.Recovery.Strategies = cloneStrings(r.Recovery.Strategies)
	out.Context.Omitted = cloneStrings(r.Context.Omitted)
	if r.Context.Metadata != nil {
		out.Context.Metadata = make(map[string]string, len(r.Context.Metadata))
		for k, v := range r.Context.Metadata {
			out.Context.Metadata[k] = v
		}
	}
	if r.Context.Details != nil {
		d := *r.Context.Details
		if d.StrictMode != nil {
			sm := *d.StrictMode
			sm.Elements = cloneStrings(d.StrictMode.Elements)
			d.StrictMode = &sm
		}
		if d.Assertion != nil {
			a := *d.Assertion
			d.Assertion = &a
		}
		out.Context.Details = &d
	}
	if r.Context.Snapshot != nil {
		s := r.Context.Snapshot.Clone()
		out.Context.Snapshot = &s
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
