package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/failscope/internal/models"
)

// RenderMarkdown renders a document as Markdown; it is the source for the
// HTML and PDF exports
func RenderMarkdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", markdownTitle(doc))
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated %s_\n\n", doc.GeneratedAt.Format(timeLayout))
	}
	if doc.Message != "" {
		fmt.Fprintf(&b, "**%s**\n\n", doc.Message)
	}

	if s := doc.Summary; s != nil {
		b.WriteString("## Summary\n\n")
		b.WriteString("| Field | Value |\n|-------|-------|\n")
		if s.SessionID != "" {
			fmt.Fprintf(&b, "| Session | %s |\n", mdCell(s.SessionID))
		}
		if !s.StartedAt.IsZero() {
			fmt.Fprintf(&b, "| Started | %s |\n", s.StartedAt.Format(timeLayout))
		}
		fmt.Fprintf(&b, "| Tests | %d |\n| Passed | %d |\n| Failed | %d |\n| Skipped | %d |\n",
			s.TotalTests, s.Passed, s.Failed, s.Skipped)
		fmt.Fprintf(&b, "| Failure rate | %.1f%% |\n\n", s.FailureRate()*100)
	}

	if len(doc.Counts) > 0 {
		b.WriteString("## Failures by category\n\n| Category | Count |\n|----------|-------|\n")
		for _, c := range doc.Counts {
			fmt.Fprintf(&b, "| %s | %d |\n", c.Category, c.Count)
		}
		b.WriteString("\n")
	}

	if len(doc.Insights) > 0 {
		b.WriteString("## Insights\n\n")
		for _, in := range doc.Insights {
			fmt.Fprintf(&b, "### [%s] %s\n\n%s\n\n", strings.ToUpper(string(in.Priority)), in.Category, in.Description)
			if len(in.AffectedTests) > 0 {
				fmt.Fprintf(&b, "**Affected tests:** %s\n\n", mdInline(strings.Join(in.AffectedTests, ", ")))
			}
			for _, rec := range in.Recommendations {
				fmt.Fprintf(&b, "- %s\n", rec)
			}
			b.WriteString("\n")
		}
	}

	if h := doc.History; h != nil && h.TotalRuns > 0 {
		writeHistoryMarkdown(&b, *h)
	}

	for _, g := range doc.Groups {
		fmt.Fprintf(&b, "## %s (%d)\n\n", mdInline(g.Key), g.Count)
		for _, r := range g.Failures {
			fmt.Fprintf(&b, "- %s: %s\n", mdInline(testName(r)), mdInline(firstLine(r.Message)))
		}
		b.WriteString("\n")
	}

	if len(doc.Failures) > 0 {
		b.WriteString("## Failure details\n\n")
		for i, r := range doc.Failures {
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, mdInline(testName(r)))
			fmt.Fprintf(&b, "- **Category:** %s\n", r.Category)
			if r.Context.URL != "" {
				fmt.Fprintf(&b, "- **URL:** %s\n", mdInline(r.Context.URL))
			}
			if r.Context.Project != "" {
				fmt.Fprintf(&b, "- **Project:** %s\n", mdInline(r.Context.Project))
			}
			writeDetailsMarkdown(&b, r.Context.Details)
			fmt.Fprintf(&b, "\n```\n%s\n```\n\n", strings.TrimSpace(r.Message))
		}
	}

	if len(doc.Suggestions) > 0 {
		b.WriteString("## Debugging suggestions\n\n")
		for _, s := range doc.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	if len(doc.Hints) > 0 {
		b.WriteString("## Hints\n\n")
		for _, h := range doc.Hints {
			fmt.Fprintf(&b, "- `%s`\n", strings.TrimSpace(h))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeHistoryMarkdown(b *strings.Builder, h models.HistoricalAnalysis) {
	b.WriteString("## History\n\n")
	fmt.Fprintf(b, "Runs analyzed: **%d**, average failure rate **%.1f%%**\n\n", h.TotalRuns, h.AverageFailureRate*100)
	if len(h.TrendingPatterns) > 0 {
		b.WriteString("| Category | Count | Frequency | Example |\n|----------|-------|-----------|---------|\n")
		for _, p := range h.TrendingPatterns {
			example := ""
			if len(p.Examples) > 0 {
				example = mdCell(p.Examples[0])
			}
			fmt.Fprintf(b, "| %s | %d | %.1f%% | %s |\n", p.Category, p.Count, p.Frequency*100, example)
		}
		b.WriteString("\n")
	}
	writeMarkdownList(b, "Flaky tests", h.FlakyTests)
	writeMarkdownList(b, "Consistent failures", h.ConsistentFailures)
}

func writeMarkdownList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "### %s\n\n", title)
	if len(items) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", mdInline(item))
	}
	b.WriteString("\n")
}

func writeDetailsMarkdown(b *strings.Builder, d *models.CategoryDetails) {
	if d == nil {
		return
	}
	if s := d.StrictMode; s != nil {
		fmt.Fprintf(b, "- **Selector:** `%s` matched %d elements\n", s.Selector, s.ElementsFound)
		fmt.Fprintf(b, "- **Fix:** %s\n", s.SuggestedFix)
	}
	if a := d.Assertion; a != nil {
		fmt.Fprintf(b, "- **Operation:** %s\n", mdInline(a.Operation))
		fmt.Fprintf(b, "- **Expected:** `%s`\n- **Actual:** `%s`\n", a.ExpectedValue, a.ActualValue)
		fmt.Fprintf(b, "- **Fix:** %s\n", a.SuggestedFix)
	}
}

func markdownTitle(doc Document) string {
	switch doc.Kind {
	case KindHistory:
		return "Historical Failure Analysis"
	case KindHandler:
		return "Failure Report"
	case KindCategory:
		return "Failures by Group"
	case KindHelp:
		return "Debugging Hints"
	default:
		return "Test Run Failures"
	}
}

// mdInline escapes characters that would start Markdown emphasis or links
func mdInline(s string) string {
	r := strings.NewReplacer("*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "`", "'")
	return r.Replace(s)
}

func mdCell(s string) string {
	return strings.ReplaceAll(mdInline(s), "|", `\|`)
}
