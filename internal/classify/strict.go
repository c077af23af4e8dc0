package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/failscope/internal/models"
)

// DefaultMaxElements is how many matched element descriptions are kept
const DefaultMaxElements = 3

var (
	resolvedCountPattern = regexp.MustCompile(`(?i)resolved to (\d+) elements`)
	locatorPattern       = regexp.MustCompile(`locator\(\s*['"](.+?)['"]\s*\)`)
	getByPattern         = regexp.MustCompile(`(getBy\w+\(.*?\))\s+resolved to`)
	quotedSelector       = regexp.MustCompile(`(?i)selector\s+["'](.+?)["']`)
	elementLinePattern   = regexp.MustCompile(`^\s*\d+\)\s+(.+)$`)
)

// ExtractStrictMode parses a strict-mode violation message. selector, when
// non-empty, overrides whatever selector can be read from the text.
// Returns nil for messages that are not strict-mode violations.
func ExtractStrictMode(message, selector string, maxElements int) *models.StrictModeDetails {
	if Classify(message) != models.CategoryStrictModeViolation {
		return nil
	}
	if maxElements <= 0 {
		maxElements = DefaultMaxElements
	}

	details := &models.StrictModeDetails{
		Selector: selector,
	}

	if m := resolvedCountPattern.FindStringSubmatch(message); m != nil {
		details.ElementsFound, _ = strconv.Atoi(m[1])
	}

	if details.Selector == "" {
		details.Selector = extractSelector(message)
	}

	for _, line := range strings.Split(message, "\n") {
		if len(details.Elements) >= maxElements {
			break
		}
		if m := elementLinePattern.FindStringSubmatch(line); m != nil {
			details.Elements = append(details.Elements, strings.TrimSpace(m[1]))
		}
	}

	details.SuggestedFix = StrictModeFix(details.ElementsFound)
	return details
}

// StrictModeFix picks the suggestion for a selector that matched count elements
func StrictModeFix(count int) string {
	switch {
	case count == 2:
		return "Use .first() or narrow the selector so it matches a single element"
	case count > 2:
		return "Selector is too broad: add a more specific attribute or id (e.g. data-testid)"
	default:
		return "Make the selector match exactly one element"
	}
}

func extractSelector(message string) string {
	if m := locatorPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := getByPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := quotedSelector.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}
