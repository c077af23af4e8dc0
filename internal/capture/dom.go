package capture

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/failscope/internal/classify"
	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/models"
)

const maxDescriptionText = 60

// DescribeMatches evaluates a CSS selector against captured DOM source and
// returns how many elements match plus short descriptions of the first max.
// Selectors goquery cannot parse simply match nothing.
func DescribeMatches(html, selector string, max int) (int, []string, error) {
	if strings.TrimSpace(html) == "" || strings.TrimSpace(selector) == "" {
		return 0, nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse DOM source: %w", err)
	}

	selection := doc.Find(selector)
	var descriptions []string
	selection.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if max > 0 && i >= max {
			return false
		}
		descriptions = append(descriptions, describeElement(s))
		return true
	})
	return selection.Length(), descriptions, nil
}

// EnrichStrictMode fills in element count and descriptions from the DOM when
// the failure message itself did not list them
func EnrichStrictMode(details *models.StrictModeDetails, html string, max int) *models.StrictModeDetails {
	if details == nil || details.Selector == "" || html == "" {
		return details
	}
	if details.ElementsFound > 0 && len(details.Elements) > 0 {
		return details
	}
	count, descriptions, err := DescribeMatches(html, details.Selector, max)
	if err != nil || count < 2 {
		return details
	}
	enriched := *details
	if enriched.ElementsFound == 0 {
		enriched.ElementsFound = count
		enriched.SuggestedFix = classify.StrictModeFix(count)
	}
	if len(enriched.Elements) == 0 {
		enriched.Elements = descriptions
	}
	return &enriched
}

func describeElement(s *goquery.Selection) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(goquery.NodeName(s))
	for _, attr := range []string{"id", "class", "data-testid", "name", "type"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			fmt.Fprintf(&b, " %s=%q", attr, v)
		}
	}
	b.WriteString(">")

	text := strings.Join(strings.Fields(s.Text()), " ")
	if len(text) > maxDescriptionText {
		text = common.TruncateUTF8(text, maxDescriptionText-3) + "..."
	}
	b.WriteString(text)
	return b.String()
}

// MatchText returns the whitespace-normalised text of the first element
// matching selector; ok is false when nothing matches
func MatchText(html, selector string) (string, bool, error) {
	if strings.TrimSpace(html) == "" || strings.TrimSpace(selector) == "" {
		return "", false, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse DOM source: %w", err)
	}
	first := doc.Find(selector).First()
	if first.Length() == 0 {
		return "", false, nil
	}
	return strings.Join(strings.Fields(first.Text()), " "), true, nil
}
