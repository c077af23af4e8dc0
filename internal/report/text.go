// Package report formats failure records, insights and historical analysis
// as text, JSON, YAML, Markdown, HTML and PDF. Every renderer handles empty
// input with an explicit "all clear" message.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/models"
)

const (
	maxStackLines   = 10
	maxMessageWidth = 200
	timeLayout      = "2006-01-02 15:04:05"
)

// Empty-input messages
const (
	NoFailuresMessage = "No failures recorded. All clear."
	NoRunsMessage     = "No historical runs found. Run the test suite to collect data."
	NoInsightsMessage = "No failures to analyze. All clear."
)

// NoDataMessage is shown when nothing has been recorded in dir, as opposed
// to a recorded run that had no failures
func NoDataMessage(dir string) string {
	return fmt.Sprintf("No failure data found in %s; has a run been recorded?", dir)
}

// CategoryCount is one row of a counts-by-category table
type CategoryCount struct {
	Category models.Category `json:"category" yaml:"category"`
	Count    int             `json:"count" yaml:"count"`
}

// CountByCategory returns non-zero counts, largest first; ties keep taxonomy order
func CountByCategory(records []models.FailureRecord) []CategoryCount {
	counts := make(map[models.Category]int)
	for _, r := range records {
		counts[r.Category]++
	}
	var rows []CategoryCount
	for _, c := range models.AllCategories() {
		if counts[c] > 0 {
			rows = append(rows, CategoryCount{Category: c, Count: counts[c]})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	return rows
}

// RenderHandlerReport renders the store's live view: counts by category, the
// most recent entries and the debugging suggestions
func RenderHandlerReport(records []models.FailureRecord, recent int, suggestions []string) string {
	var b strings.Builder
	b.WriteString("=== Failure Report ===\n")
	if len(records) == 0 {
		b.WriteString(NoFailuresMessage + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Total failures: %d\n\n", len(records))
	writeCounts(&b, records)

	if recent > 0 {
		start := len(records) - recent
		if start < 0 {
			start = 0
		}
		fmt.Fprintf(&b, "\nMost recent (%d):\n", len(records)-start)
		for i := len(records) - 1; i >= start; i-- {
			r := records[i]
			fmt.Fprintf(&b, "  [%s] %-24s %s\n", r.Timestamp.Format("15:04:05"), r.Category, testName(r))
			fmt.Fprintf(&b, "      %s\n", firstLine(r.Message))
		}
	}

	writeSuggestions(&b, suggestions)
	return b.String()
}

// RenderRunText renders a run dump: summary, counts and every failure in detail
func RenderRunText(dump models.RunDump) string {
	var b strings.Builder
	b.WriteString("=== Test Run Failures ===\n")
	writeSummary(&b, dump.Summary)

	if len(dump.Failures) == 0 {
		b.WriteString("\nNo failures in this run. All clear.\n")
		return b.String()
	}

	b.WriteString("\n")
	writeCounts(&b, dump.Failures)
	b.WriteString("\n")
	for i, r := range dump.Failures {
		writeFailure(&b, i+1, r)
	}
	return b.String()
}

// RenderInsights renders prioritized insights
func RenderInsights(insights []models.Insight) string {
	var b strings.Builder
	b.WriteString("=== Failure Insights ===\n")
	if len(insights) == 0 {
		b.WriteString(NoInsightsMessage + "\n")
		return b.String()
	}
	for _, in := range insights {
		fmt.Fprintf(&b, "\n[%s] %s (%d)\n", strings.ToUpper(string(in.Priority)), in.Category, in.Count)
		fmt.Fprintf(&b, "  %s\n", in.Description)
		if len(in.AffectedTests) > 0 {
			fmt.Fprintf(&b, "  Affected tests: %s\n", strings.Join(in.AffectedTests, ", "))
		}
		if len(in.Recommendations) > 0 {
			b.WriteString("  Recommendations:\n")
			for _, rec := range in.Recommendations {
				fmt.Fprintf(&b, "    - %s\n", rec)
			}
		}
	}
	return b.String()
}

// RenderHistory renders a historical analysis
func RenderHistory(h models.HistoricalAnalysis) string {
	var b strings.Builder
	b.WriteString("=== Historical Analysis ===\n")
	if h.TotalRuns == 0 {
		b.WriteString(NoRunsMessage + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Runs analyzed:        %d\n", h.TotalRuns)
	fmt.Fprintf(&b, "Average failure rate: %.1f%%\n", h.AverageFailureRate*100)
	if !h.AnalyzedAt.IsZero() {
		fmt.Fprintf(&b, "Analyzed at:          %s\n", h.AnalyzedAt.Format(timeLayout))
	}

	b.WriteString("\nTrending patterns:\n")
	if len(h.TrendingPatterns) == 0 {
		b.WriteString("  none\n")
	}
	for _, p := range h.TrendingPatterns {
		fmt.Fprintf(&b, "  %-24s %4d  %5.1f%%\n", p.Category, p.Count, p.Frequency*100)
		for _, ex := range p.Examples {
			fmt.Fprintf(&b, "      e.g. %s\n", ex)
		}
	}

	writeList(&b, "Flaky tests", h.FlakyTests)
	writeList(&b, "Consistent failures", h.ConsistentFailures)
	return b.String()
}

// RenderCategoryGroup filters records to one category and groups them:
// strict-mode violations by selector, assertions by operation, anything
// else by test name
func RenderCategoryGroup(records []models.FailureRecord, category models.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", category.Label())

	groups, order := groupRecords(records, category)
	if len(order) == 0 {
		fmt.Fprintf(&b, "No %s records found.\n", strings.ToLower(category.Label()))
		return b.String()
	}

	total := 0
	for _, key := range order {
		total += len(groups[key])
	}
	fmt.Fprintf(&b, "Total: %d in %d group(s)\n", total, len(order))

	for _, key := range order {
		group := groups[key]
		fmt.Fprintf(&b, "\n%s (%d)\n", key, len(group))
		for _, r := range group {
			fmt.Fprintf(&b, "  - %s\n", testName(r))
			writeDetails(&b, r.Context.Details, "      ")
		}
	}
	return b.String()
}

// GroupKey returns the grouping key used by RenderCategoryGroup
func GroupKey(r models.FailureRecord) string {
	d := r.Context.Details
	switch {
	case d != nil && d.StrictMode != nil:
		if d.StrictMode.Selector != "" {
			return "Selector: " + d.StrictMode.Selector
		}
		return "Selector: (unknown)"
	case d != nil && d.Assertion != nil:
		if d.Assertion.Operation != "" {
			return "Operation: " + d.Assertion.Operation
		}
		return "Operation: (unknown)"
	default:
		return "Test: " + testName(r)
	}
}

func groupRecords(records []models.FailureRecord, category models.Category) (map[string][]models.FailureRecord, []string) {
	groups := make(map[string][]models.FailureRecord)
	var order []string
	for _, r := range records {
		if r.Category != category {
			continue
		}
		key := GroupKey(r)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	return groups, order
}

// RenderSessionSummary is the end-of-session report written next to the run dump
func RenderSessionSummary(dump models.RunDump, insights []models.Insight, suggestions []string) string {
	var b strings.Builder
	b.WriteString("=== Session Summary ===\n")
	writeSummary(&b, dump.Summary)
	b.WriteString("\n")
	if len(dump.Failures) == 0 {
		b.WriteString(NoFailuresMessage + "\n")
		return b.String()
	}
	writeCounts(&b, dump.Failures)
	b.WriteString("\n")
	b.WriteString(RenderInsights(insights))
	writeSuggestions(&b, suggestions)
	return b.String()
}

// DebugHints is static help text independent of any run data
func DebugHints() []string {
	return []string{
		"failscope latest                 insights for the most recent run",
		"failscope history --runs 20      trends and flaky tests across runs",
		"failscope handler                live store report with suggestions",
		"failscope strict                 strict-mode violations grouped by selector",
		"failscope assertions             assertion failures grouped by operation",
		"failscope export --as html       write the latest run as md, html or pdf",
		"FAILSCOPE_LOG_LEVEL=debug        verbose capture and storage logging",
		"FAILSCOPE_CAPTURE_DOM_SOURCE=true  keep full DOM source with each failure",
	}
}

// RenderHints renders DebugHints as a text block
func RenderHints() string {
	var b strings.Builder
	b.WriteString("Debugging hints:\n")
	for _, h := range DebugHints() {
		fmt.Fprintf(&b, "  %s\n", h)
	}
	return b.String()
}

func writeSummary(b *strings.Builder, s models.RunSummary) {
	if s.SessionID != "" {
		fmt.Fprintf(b, "Session:      %s\n", s.SessionID)
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(b, "Started:      %s\n", s.StartedAt.Format(timeLayout))
	}
	if !s.EndedAt.IsZero() {
		fmt.Fprintf(b, "Ended:        %s (%s)\n", s.EndedAt.Format(timeLayout), s.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(b, "Tests:        %d total, %d passed, %d failed, %d skipped\n", s.TotalTests, s.Passed, s.Failed, s.Skipped)
	fmt.Fprintf(b, "Failure rate: %.1f%%\n", s.FailureRate()*100)
	if len(s.Projects) > 0 {
		fmt.Fprintf(b, "Projects:     %s\n", strings.Join(s.Projects, ", "))
	}
}

func writeCounts(b *strings.Builder, records []models.FailureRecord) {
	b.WriteString("By category:\n")
	for _, row := range CountByCategory(records) {
		fmt.Fprintf(b, "  %-24s %d\n", row.Category, row.Count)
	}
}

func writeFailure(b *strings.Builder, n int, r models.FailureRecord) {
	fmt.Fprintf(b, "#%d %s  %s\n", n, r.Category, testName(r))
	if r.ID != "" {
		fmt.Fprintf(b, "   ID:      %s\n", r.ID)
	}
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(b, "   Time:    %s\n", r.Timestamp.Format(timeLayout))
	}
	if r.Context.TestFile != "" {
		fmt.Fprintf(b, "   File:    %s\n", r.Context.TestFile)
	}
	if r.Context.Project != "" {
		fmt.Fprintf(b, "   Project: %s\n", r.Context.Project)
	}
	if r.Context.URL != "" {
		fmt.Fprintf(b, "   URL:     %s\n", r.Context.URL)
	}
	if r.Context.RetryCount > 0 {
		fmt.Fprintf(b, "   Retry:   %d\n", r.Context.RetryCount)
	}
	fmt.Fprintf(b, "   Message: %s\n", firstLine(r.Message))
	writeDetails(b, r.Context.Details, "   ")
	if r.Recovery.Attempted {
		fmt.Fprintf(b, "   Recovery: %s after %d attempt(s) [%s]\n",
			outcome(r.Recovery.Successful), r.Recovery.Attempts, strings.Join(r.Recovery.Strategies, ", "))
	}
	if len(r.Artifacts) > 0 {
		fmt.Fprintf(b, "   Artifacts: %s\n", strings.Join(r.Artifacts, ", "))
	}
	if len(r.Context.Omitted) > 0 {
		fmt.Fprintf(b, "   Not captured: %s\n", strings.Join(r.Context.Omitted, ", "))
	}
	if stack := TruncateStack(r.Stack, maxStackLines); stack != "" {
		b.WriteString("   Stack:\n")
		for _, line := range strings.Split(stack, "\n") {
			fmt.Fprintf(b, "     %s\n", line)
		}
	}
	b.WriteString("\n")
}

func writeDetails(b *strings.Builder, d *models.CategoryDetails, indent string) {
	if d == nil {
		return
	}
	if s := d.StrictMode; s != nil {
		fmt.Fprintf(b, "%sElements found: %d\n", indent, s.ElementsFound)
		for i, el := range s.Elements {
			fmt.Fprintf(b, "%s  %d) %s\n", indent, i+1, el)
		}
		fmt.Fprintf(b, "%sFix: %s\n", indent, s.SuggestedFix)
	}
	if a := d.Assertion; a != nil {
		fmt.Fprintf(b, "%sExpected: %s\n", indent, a.ExpectedValue)
		fmt.Fprintf(b, "%sActual:   %s\n", indent, a.ActualValue)
		fmt.Fprintf(b, "%sFix: %s\n", indent, a.SuggestedFix)
	}
}

func writeSuggestions(b *strings.Builder, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	b.WriteString("\nDebugging suggestions:\n")
	for _, s := range suggestions {
		fmt.Fprintf(b, "  - %s\n", s)
	}
}

func writeList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "\n%s (%d):\n", title, len(items))
	if len(items) == 0 {
		b.WriteString("  none\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// TruncateStack keeps the first max lines of a stack trace
func TruncateStack(stack string, max int) string {
	stack = strings.TrimRight(stack, "\n")
	if stack == "" {
		return ""
	}
	lines := strings.Split(stack, "\n")
	if len(lines) <= max {
		return stack
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... %d more line(s)", len(lines)-max)
}

func firstLine(message string) string {
	line := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	if len(line) > maxMessageWidth {
		return common.TruncateUTF8(line, maxMessageWidth) + "..."
	}
	return line
}

func testName(r models.FailureRecord) string {
	if r.Context.TestName == "" {
		return "(unnamed test)"
	}
	return r.Context.TestName
}

func outcome(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "failed"
}
