// Package classify maps raw failure text to the fixed failure taxonomy.
package classify

import (
	"strings"

	"github.com/ternarybob/failscope/internal/models"
)

// rule is one entry of the ordered decision list.
// A rule matches when every group has at least one keyword present.
type rule struct {
	category models.Category
	groups   [][]string
}

// rules are evaluated in order; first match wins. Categories share vocabulary,
// so the most specific rules come first (a navigation timeout must not fall
// through to the generic network timeout).
var rules = []rule{
	{
		category: models.CategoryStrictModeViolation,
		groups:   [][]string{{"strict mode violation"}},
	},
	{
		category: models.CategorySelectorNotFound,
		groups:   [][]string{{"locator", "selector", "not found"}},
	},
	{
		category: models.CategoryNavigationTimeout,
		groups: [][]string{
			{"timeout", "deadline exceeded"},
			{"navigation", "navigating"},
		},
	},
	{
		category: models.CategoryNetworkTimeout,
		groups:   [][]string{{"timeout", "deadline exceeded", "network", "net::err_"}},
	},
	{
		category: models.CategoryAuthenticationFailure,
		groups:   [][]string{{"login", "authentication", "credential"}},
	},
	{
		category: models.CategoryElementNotInteractive,
		groups:   [][]string{{"not clickable", "not visible", "detached"}},
	},
	{
		category: models.CategoryAssertionFailure,
		groups:   [][]string{{"expect", "assertion"}},
	},
}

// Classify returns the category for a failure message.
// It is total: unrecognised text yields CategoryUnknown.
func Classify(message string) models.Category {
	if message == "" {
		return models.CategoryUnknown
	}
	lower := strings.ToLower(message)

	// "resolved to N elements" is only ever a strict-mode report
	if resolvedCountPattern.MatchString(lower) {
		return models.CategoryStrictModeViolation
	}

	for _, r := range rules {
		if r.matches(lower) {
			return r.category
		}
	}
	return models.CategoryUnknown
}

// ClassifyError classifies err by its message; nil is CategoryUnknown
func ClassifyError(err error) models.Category {
	if err == nil {
		return models.CategoryUnknown
	}
	return Classify(err.Error())
}

func (r rule) matches(lower string) bool {
	for _, group := range r.groups {
		if !containsAny(lower, group) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
