package analysis

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/failscope/internal/models"
)

func failure(test string, category models.Category) models.FailureRecord {
	return models.FailureRecord{
		Category: category,
		Message:  string(category) + " in " + test,
		Context:  models.FailureContext{TestName: test},
	}
}

func withProject(r models.FailureRecord, project string) models.FailureRecord {
	r.Context.Project = project
	return r
}

func TestAnalyzeEndToEndScenario(t *testing.T) {
	records := []models.FailureRecord{
		failure("cart adds item", models.CategorySelectorNotFound),
		failure("checkout form", models.CategorySelectorNotFound),
		failure("search results", models.CategoryNetworkTimeout),
		failure("product page", models.CategoryNetworkTimeout),
		failure("login works", models.CategoryAuthenticationFailure),
	}

	insights := NewAnalyzer(DefaultConfig()).Analyze(records)

	require.Len(t, insights, 3)
	assert.Equal(t, "Authentication Issues", insights[0].Category)
	assert.Equal(t, models.PriorityHigh, insights[0].Priority)
	assert.Equal(t, []string{"login works"}, insights[0].AffectedTests)

	byTitle := make(map[string]models.Insight)
	for _, in := range insights {
		byTitle[in.Category] = in
	}
	require.Contains(t, byTitle, "Network Timeouts")
	require.Contains(t, byTitle, "Selector Issues")
	assert.Equal(t, 2, byTitle["Network Timeouts"].Count)
	assert.Equal(t, []string{"cart adds item", "checkout form"}, byTitle["Selector Issues"].AffectedTests)
	assert.NotEmpty(t, byTitle["Selector Issues"].Recommendations)
}

func TestAnalyzePriorityThresholds(t *testing.T) {
	tests := []struct {
		name     string
		records  []models.FailureRecord
		title    string
		expected models.Priority
	}{
		{
			name: "selector at 40% stays medium",
			records: []models.FailureRecord{
				failure("a", models.CategorySelectorNotFound),
				failure("b", models.CategorySelectorNotFound),
				failure("c", models.CategoryAssertionFailure),
				failure("d", models.CategoryAssertionFailure),
				failure("e", models.CategoryAssertionFailure),
			},
			title:    "Selector Issues",
			expected: models.PriorityMedium,
		},
		{
			name: "selector above 40% is high",
			records: []models.FailureRecord{
				failure("a", models.CategorySelectorNotFound),
				failure("b", models.CategorySelectorNotFound),
				failure("c", models.CategoryAssertionFailure),
			},
			title:    "Selector Issues",
			expected: models.PriorityHigh,
		},
		{
			name: "timeout at 25% is medium",
			records: []models.FailureRecord{
				failure("a", models.CategoryNavigationTimeout),
				failure("b", models.CategoryAssertionFailure),
				failure("c", models.CategoryAssertionFailure),
				failure("d", models.CategoryAssertionFailure),
			},
			title:    "Navigation Timeouts",
			expected: models.PriorityMedium,
		},
		{
			name: "unknown is low",
			records: []models.FailureRecord{
				failure("a", models.CategoryUnknown),
			},
			title:    "Unclassified Failures",
			expected: models.PriorityLow,
		},
	}

	analyzer := NewAnalyzer(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := analyzer.Analyze(tt.records)
			found := false
			for _, in := range insights {
				if in.Category == tt.title {
					found = true
					assert.Equal(t, tt.expected, in.Priority)
				}
			}
			assert.True(t, found, "insight %q not produced", tt.title)
		})
	}
}

func TestAnalyzeSortIsStableByPriority(t *testing.T) {
	records := []models.FailureRecord{
		failure("u", models.CategoryUnknown),
		failure("a", models.CategoryAssertionFailure),
		failure("s", models.CategoryStrictModeViolation),
		failure("l", models.CategoryAuthenticationFailure),
	}

	insights := NewAnalyzer(DefaultConfig()).Analyze(records)

	var titles []string
	for _, in := range insights {
		titles = append(titles, in.Category)
	}
	assert.Equal(t, []string{
		"Authentication Issues",
		"Ambiguous Selectors",
		"Assertion Mismatches",
		"Unclassified Failures",
	}, titles)
}

func TestAnalyzeFlakyRetries(t *testing.T) {
	retried := failure("sometimes fails", models.CategoryAssertionFailure)
	retried.Context.RetryCount = 2

	insights := NewAnalyzer(DefaultConfig()).Analyze([]models.FailureRecord{retried})

	var flaky *models.Insight
	for i := range insights {
		if insights[i].Category == InsightFlaky {
			flaky = &insights[i]
		}
	}
	require.NotNil(t, flaky)
	assert.Equal(t, models.PriorityMedium, flaky.Priority)
	assert.Equal(t, []string{"sometimes fails"}, flaky.AffectedTests)
}

func TestAnalyzeEnvironmentSkew(t *testing.T) {
	var records []models.FailureRecord
	for i := 0; i < 9; i++ {
		records = append(records, withProject(failure(fmt.Sprintf("t%d", i), models.CategoryAssertionFailure), "webkit"))
	}
	records = append(records, withProject(failure("t9", models.CategoryAssertionFailure), "chromium"))

	hasSkew := func(insights []models.Insight) bool {
		for _, in := range insights {
			if in.Category == InsightEnvironment {
				assert.Equal(t, models.PriorityMedium, in.Priority)
				assert.Contains(t, in.Description, "webkit")
				return true
			}
		}
		return false
	}

	analyzer := NewAnalyzer(DefaultConfig())
	assert.True(t, hasSkew(analyzer.Analyze(records)))

	// every failure in one project, but only that project ran
	single := records[:9]
	assert.False(t, hasSkew(analyzer.Analyze(single)))

	// other projects that ran without failures count
	assert.True(t, hasSkew(analyzer.Analyze(single, WithProjects([]string{"webkit", "firefox"}))))

	// exactly 80% is not skew
	even := append([]models.FailureRecord{}, records[:8]...)
	even = append(even, withProject(failure("x", models.CategoryUnknown), "chromium"))
	even = append(even, withProject(failure("y", models.CategoryUnknown), "firefox"))
	assert.False(t, hasSkew(analyzer.Analyze(even)))
}

func TestAnalyzeEmptyAndImmutable(t *testing.T) {
	analyzer := NewAnalyzer(DefaultConfig())
	assert.Empty(t, analyzer.Analyze(nil))

	records := []models.FailureRecord{failure("a", models.CategoryUnknown)}
	before := records[0].Clone()
	analyzer.Analyze(records)
	assert.Equal(t, before, records[0])
}

func TestAnalyzeMinOccurrences(t *testing.T) {
	config := DefaultConfig()
	config.MinOccurrences = 2
	insights := NewAnalyzer(config).Analyze([]models.FailureRecord{
		failure("a", models.CategoryAssertionFailure),
		failure("b", models.CategoryUnknown),
		failure("c", models.CategoryUnknown),
	})
	require.Len(t, insights, 1)
	assert.Equal(t, "Unclassified Failures", insights[0].Category)
}

func run(total, failed int, failing ...string) models.RunDump {
	dump := models.RunDump{Summary: models.RunSummary{TotalTests: total, Failed: failed}}
	for _, name := range failing {
		dump.Failures = append(dump.Failures, failure(name, models.CategoryAssertionFailure))
	}
	return dump
}

func TestAnalyzeHistoryFlakyVsConsistent(t *testing.T) {
	var runs []models.RunDump
	for i := 1; i <= 10; i++ {
		failing := []string{"B"}
		if i == 1 || i == 3 || i == 5 || i == 7 {
			failing = append(failing, "A")
		}
		runs = append(runs, run(20, len(failing), failing...))
	}

	analyzer := NewAnalyzer(DefaultConfig())
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	analyzer.now = func() time.Time { return fixed }

	result := analyzer.AnalyzeHistory(runs)

	assert.Equal(t, 10, result.TotalRuns)
	assert.Equal(t, []string{"A"}, result.FlakyTests)
	assert.Equal(t, []string{"B"}, result.ConsistentFailures)
	assert.NotContains(t, result.FlakyTests, "B")
	assert.NotContains(t, result.ConsistentFailures, "A")
	assert.Equal(t, fixed, result.AnalyzedAt)
	assert.InDelta(t, (4*2.0/20+6*1.0/20)/10, result.AverageFailureRate, 1e-9)
}

func TestAnalyzeHistoryThresholdBoundary(t *testing.T) {
	var runs []models.RunDump
	for i := 0; i < 10; i++ {
		var failing []string
		if i < 8 {
			failing = append(failing, "eighty")
		}
		if i == 0 {
			failing = append(failing, "once")
		}
		runs = append(runs, run(5, len(failing), failing...))
	}

	result := NewAnalyzer(DefaultConfig()).AnalyzeHistory(runs)

	assert.Equal(t, []string{"eighty"}, result.ConsistentFailures)
	assert.Empty(t, result.FlakyTests, "a single failing run is neither flaky nor consistent")
}

func TestAnalyzeHistoryTrending(t *testing.T) {
	config := DefaultConfig()
	config.TrendingLimit = 2
	config.ExampleMessages = 3

	dump := models.RunDump{}
	for i := 0; i < 5; i++ {
		r := failure(fmt.Sprintf("t%d", i), models.CategoryNetworkTimeout)
		r.Message = fmt.Sprintf("Timeout %d exceeded\n    at step", i)
		dump.Failures = append(dump.Failures, r)
	}
	dump.Failures = append(dump.Failures,
		failure("x", models.CategoryUnknown),
		failure("y", models.CategoryAssertionFailure),
		failure("z", models.CategoryAssertionFailure),
	)

	result := NewAnalyzer(config).AnalyzeHistory([]models.RunDump{dump})

	require.Len(t, result.TrendingPatterns, 2)
	top := result.TrendingPatterns[0]
	assert.Equal(t, models.CategoryNetworkTimeout, top.Category)
	assert.Equal(t, 5, top.Count)
	assert.InDelta(t, 5.0/8.0, top.Frequency, 1e-9)
	assert.Equal(t, []string{"Timeout 0 exceeded", "Timeout 1 exceeded", "Timeout 2 exceeded"}, top.Examples)
	assert.Equal(t, models.CategoryAssertionFailure, result.TrendingPatterns[1].Category)

	assert.InDelta(t, 1.0, result.AverageFailureRate, 1e-9, "dump without counts treats recorded failures as the run")
}

func TestAnalyzeHistoryEmpty(t *testing.T) {
	result := NewAnalyzer(DefaultConfig()).AnalyzeHistory(nil)
	assert.Equal(t, 0, result.TotalRuns)
	assert.Zero(t, result.AverageFailureRate)
	assert.NotNil(t, result.FlakyTests)
	assert.NotNil(t, result.ConsistentFailures)
	assert.NotNil(t, result.TrendingPatterns)
}

func TestNewAnalyzerFillsZeroValues(t *testing.T) {
	a := NewAnalyzer(Config{FlakyThreshold: 0.5})

	want := DefaultConfig()
	want.FlakyThreshold = 0.5
	assert.Equal(t, want, a.config)

	// one navigation timeout among ten failures stays below the default 30% ratio
	var records []models.FailureRecord
	records = append(records, failure("nav", models.CategoryNavigationTimeout))
	for i := 0; i < 9; i++ {
		records = append(records, failure(fmt.Sprintf("a%d", i), models.CategoryAssertionFailure))
	}
	for _, insight := range a.Analyze(records) {
		assert.NotEqual(t, models.PriorityHigh, insight.Priority, insight.Title)
	}
}

func TestExampleMessageKeepsValidUTF8(t *testing.T) {
	got := exampleMessage("x" + strings.Repeat("€", maxExampleLength))

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}
