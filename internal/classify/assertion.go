package classify

import (
	"fmt"
	"strings"

	"github.com/ternarybob/failscope/internal/models"
)

// Comparison operator families used to pick a suggested fix
const (
	OpContains   = "contains"
	OpEquality   = "equality"
	OpVisibility = "visibility"
	OpText       = "text"
	OpURL        = "url"
	OpCount      = "count"
)

var assertionFixes = map[string]string{
	OpContains:   "Check the expected substring against the actual value; dynamic content may need a looser match or a regular expression",
	OpEquality:   "Compare expected and actual values for formatting differences (whitespace, casing, number formatting) or stale test data",
	OpVisibility: "Wait for the element to be attached and visible before asserting; check for overlays, animations or conditional rendering",
	OpText:       "Text may still be loading or localised; wait for the final text or assert on a stable substring",
	OpURL:        "Navigation may not have completed or redirected elsewhere; wait for the URL and check redirects/auth guards",
	OpCount:      "Element count differs: wait for the list to finish rendering or check filters and pagination",
}

const defaultAssertionFix = "Review the expected value and the page state at the time of the assertion"

// NewAssertionDetails builds the payload for a failed wrapped assertion.
// Values are supplied by the caller; nothing is parsed out of error text.
func NewAssertionDetails(operation string, expected, actual interface{}) *models.AssertionDetails {
	return &models.AssertionDetails{
		Operation:     operation,
		ExpectedValue: formatValue(expected),
		ActualValue:   formatValue(actual),
		SuggestedFix:  AssertionFix(operation),
	}
}

// AssertionFix looks up the suggestion for an operator name such as
// "toContain", "toHaveURL" or "equals"
func AssertionFix(operation string) string {
	if fix, ok := assertionFixes[OperationFamily(operation)]; ok {
		return fix
	}
	return defaultAssertionFix
}

// OperationFamily normalises an operator name to one of the Op* families,
// or returns "" when the operator is not recognised
func OperationFamily(operation string) string {
	op := strings.ToLower(strings.TrimSpace(operation))
	op = strings.TrimPrefix(op, "not.")
	switch {
	case op == "":
		return ""
	case strings.Contains(op, "text"):
		return OpText
	case strings.Contains(op, "url"):
		return OpURL
	case strings.Contains(op, "count"), strings.Contains(op, "length"):
		return OpCount
	case strings.Contains(op, "visible"), strings.Contains(op, "hidden"):
		return OpVisibility
	case strings.Contains(op, "contain"):
		return OpContains
	case strings.Contains(op, "equal"), op == "tobe", op == "be", op == "is", op == "==":
		return OpEquality
	}
	return ""
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
