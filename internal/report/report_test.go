package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/failscope/internal/models"
)

var at = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func sampleRecords() []models.FailureRecord {
	return []models.FailureRecord{
		{
			ID:        "err_00000001_aaaaaaaa",
			Timestamp: at,
			Category:  models.CategoryStrictModeViolation,
			Message:   "strict mode violation: locator('button.submit') resolved to 2 elements",
			Context: models.FailureContext{
				TestName: "checkout submits",
				Details: models.NewStrictModeDetails(&models.StrictModeDetails{
					Selector:      "button.submit",
					ElementsFound: 2,
					SuggestedFix:  "Use .first()",
				}),
			},
		},
		{
			ID:        "err_00000002_bbbbbbbb",
			Timestamp: at.Add(time.Second),
			Category:  models.CategoryAssertionFailure,
			Message:   "expect(received).toBe(expected)",
			Stack:     strings.Repeat("at frame\n", 15),
			Context: models.FailureContext{
				TestName: "cart total",
				Details: models.NewAssertionCategoryDetails(&models.AssertionDetails{
					Operation:     "toBe",
					ExpectedValue: "3",
					ActualValue:   "2",
					SuggestedFix:  "Check the data",
				}),
			},
		},
		{
			ID:        "err_00000003_cccccccc",
			Timestamp: at.Add(2 * time.Second),
			Category:  models.CategoryStrictModeViolation,
			Message:   "strict mode violation: resolved to 4 elements",
			Context: models.FailureContext{
				TestName: "header links",
				Details: models.NewStrictModeDetails(&models.StrictModeDetails{
					Selector:      "button.submit",
					ElementsFound: 4,
				}),
			},
		},
	}
}

func TestEmptyInputsRenderAllClear(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"handler", RenderHandlerReport(nil, 10, nil), NoFailuresMessage},
		{"run", RenderRunText(models.RunDump{}), "All clear"},
		{"insights", RenderInsights(nil), NoInsightsMessage},
		{"history", RenderHistory(models.HistoricalAnalysis{}), NoRunsMessage},
		{"strict", RenderCategoryGroup(nil, models.CategoryStrictModeViolation), "No strict mode violation records found."},
		{"session", RenderSessionSummary(models.RunDump{}, nil, nil), NoFailuresMessage},
		{"markdown", RenderMarkdown(RunDocument(models.RunDump{}, nil, at)), NoFailuresMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.output)
			assert.Contains(t, tt.output, tt.want)
		})
	}
}

func TestRenderHandlerReport(t *testing.T) {
	out := RenderHandlerReport(sampleRecords(), 2, []string{"Make selectors more specific"})

	assert.Contains(t, out, "Total failures: 3")
	assert.Contains(t, out, "STRICT_MODE_VIOLATION    2")
	assert.Contains(t, out, "Most recent (2)")
	assert.Contains(t, out, "header links")
	assert.NotContains(t, out, "checkout submits", "only the 2 most recent entries are listed")
	assert.Contains(t, out, "- Make selectors more specific")

	// newest first
	assert.Less(t, strings.Index(out, "header links"), strings.Index(out, "cart total"))
}

func TestRenderRunTextTruncatesStack(t *testing.T) {
	dump := models.RunDump{
		Summary:  models.RunSummary{SessionID: "run_1", TotalTests: 10, Passed: 7, Failed: 3},
		Failures: sampleRecords(),
	}
	out := RenderRunText(dump)

	assert.Contains(t, out, "Session:      run_1")
	assert.Contains(t, out, "Failure rate: 30.0%")
	assert.Contains(t, out, "Expected: 3")
	assert.Contains(t, out, "... 5 more line(s)")
	assert.Equal(t, 10, strings.Count(out, "at frame"))
}

func TestRenderCategoryGroupBySelector(t *testing.T) {
	out := RenderCategoryGroup(sampleRecords(), models.CategoryStrictModeViolation)

	assert.Contains(t, out, "Total: 2 in 1 group(s)")
	assert.Contains(t, out, "Selector: button.submit (2)")
	assert.NotContains(t, out, "cart total")

	out = RenderCategoryGroup(sampleRecords(), models.CategoryAssertionFailure)
	assert.Contains(t, out, "Operation: toBe (1)")
	assert.Contains(t, out, "Actual:   2")
}

func TestRenderInsightsAndHistory(t *testing.T) {
	out := RenderInsights([]models.Insight{{
		Category:        "Authentication Issues",
		Description:     "1 failures",
		AffectedTests:   []string{"login"},
		Recommendations: []string{"Verify credentials"},
		Priority:        models.PriorityHigh,
		Count:           1,
	}})
	assert.Contains(t, out, "[HIGH] Authentication Issues (1)")
	assert.Contains(t, out, "Affected tests: login")
	assert.Contains(t, out, "    - Verify credentials")

	out = RenderHistory(models.HistoricalAnalysis{
		TotalRuns:          10,
		AverageFailureRate: 0.125,
		TrendingPatterns: []models.TrendingPattern{
			{Category: models.CategoryNetworkTimeout, Count: 4, Frequency: 0.5, Examples: []string{"Timeout 30000ms"}},
		},
		FlakyTests:         []string{"A"},
		ConsistentFailures: []string{},
	})
	assert.Contains(t, out, "Runs analyzed:        10")
	assert.Contains(t, out, "Average failure rate: 12.5%")
	assert.Contains(t, out, "e.g. Timeout 30000ms")
	assert.Contains(t, out, "Flaky tests (1):\n  - A")
	assert.Contains(t, out, "Consistent failures (0):\n  none")
}

func TestRenderJSONAndYAMLShareKeys(t *testing.T) {
	doc := RunDocument(models.RunDump{
		Summary:  models.RunSummary{SessionID: "run_1", TotalTests: 3, Failed: 3},
		Failures: sampleRecords(),
	}, nil, at)

	data, err := RenderJSON(doc)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindRun, decoded["kind"])
	assert.Len(t, decoded["failures"], 3)

	data, err = RenderYAML(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("kind: run\n")), string(data))
	assert.Contains(t, string(data), "sessionId: run_1")
	assert.NotContains(t, string(data), `"kind"`, "block style only")

	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Len(t, fromYAML["failures"], 3)
}

func TestCategoryDocumentGroups(t *testing.T) {
	doc := CategoryDocument(sampleRecords(), models.CategoryStrictModeViolation, at)
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, "Selector: button.submit", doc.Groups[0].Key)
	assert.Equal(t, 2, doc.Groups[0].Count)
	assert.Empty(t, doc.Message)

	empty := CategoryDocument(nil, models.CategoryAssertionFailure, at)
	assert.Contains(t, empty.Message, "No assertion failure records found.")
}

func TestExport(t *testing.T) {
	exporter := NewExporter(arbor.NewLogger())
	doc := RunDocument(models.RunDump{
		Summary:  models.RunSummary{SessionID: "run_1", TotalTests: 3, Failed: 3},
		Failures: sampleRecords(),
	}, []models.Insight{{Category: "Ambiguous Selectors", Priority: models.PriorityMedium, Recommendations: []string{"Narrow selectors"}}}, at)

	md, err := exporter.Export(doc, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Test Run Failures")
	assert.Contains(t, string(md), "| STRICT_MODE_VIOLATION | 2 |")

	html, err := exporter.Export(doc, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>Test Run Failures</title>")
	assert.Contains(t, string(html), "<table>")

	pdf, err := exporter.Export(doc, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	emptyPDF, err := exporter.Export(RunDocument(models.RunDump{}, nil, at), FormatPDF)
	require.NoError(t, err)
	assert.NotEmpty(t, emptyPDF)

	_, err = exporter.Export(doc, "docx")
	assert.Error(t, err)
}

func TestDebugHintsStatic(t *testing.T) {
	assert.NotEmpty(t, DebugHints())
	assert.Equal(t, DebugHints(), DebugHints())
	assert.Contains(t, RenderHints(), "failscope history")
}

func TestFirstLineKeepsValidUTF8(t *testing.T) {
	line := "x" + strings.Repeat("é", maxMessageWidth)
	got := firstLine(line + "\nsecond")

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), maxMessageWidth+len("..."))
}
