package store

import (
	"github.com/ternarybob/failscope/internal/models"
)

// suggestionRules fire when their category has at least one record.
// Every applicable rule fires; order here is output order.
var suggestionRules = []struct {
	category    models.Category
	suggestions []string
}{
	{
		category: models.CategoryStrictModeViolation,
		suggestions: []string{
			"Make selectors more specific: prefer data-testid or unique ids over classes",
			"Use .first(), .nth() or a parent scope when several matches are expected",
		},
	},
	{
		category: models.CategorySelectorNotFound,
		suggestions: []string{
			"Verify the selector still exists in the current markup",
			"Wait for the element to be attached before interacting with it",
		},
	},
	{
		category: models.CategoryNavigationTimeout,
		suggestions: []string{
			"Check that the application server is up and the base URL is correct",
			"Wait for a specific load state or element instead of full page load",
		},
	},
	{
		category: models.CategoryNetworkTimeout,
		suggestions: []string{
			"Inspect the captured network log for slow or failing requests",
			"Raise the operation timeout or mock slow third-party endpoints",
		},
	},
	{
		category: models.CategoryAuthenticationFailure,
		suggestions: []string{
			"Verify test credentials and that the test account is not locked",
			"Check that session cookies/storage are not cleared mid-test",
		},
	},
	{
		category: models.CategoryElementNotInteractive,
		suggestions: []string{
			"Wait for the element to be visible and enabled before clicking",
			"Check for overlays, modals or animations covering the element",
		},
	},
	{
		category: models.CategoryAssertionFailure,
		suggestions: []string{
			"Compare expected and actual values in the assertion details",
			"Check whether test data changed or the page had not finished updating",
		},
	},
	{
		category: models.CategoryUnknown,
		suggestions: []string{
			"Review the stack trace and captured screenshot for unclassified failures",
		},
	},
}

// SuggestionsFor returns every suggestion whose category is present in records
func SuggestionsFor(records []models.FailureRecord) []string {
	present := make(map[models.Category]bool)
	for _, r := range records {
		present[r.Category] = true
	}

	var out []string
	for _, rule := range suggestionRules {
		if present[rule.category] {
			out = append(out, rule.suggestions...)
		}
	}
	return out
}
