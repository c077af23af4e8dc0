package analysis

import (
	"github.com/ternarybob/failscope/internal/models"
)

type insightTemplate struct {
	category        models.Category
	title           string
	description     string // formatted with count and percentage
	recommendations []string
}

// categoryTemplates is also the processing order; it decides tie order among
// insights of equal priority
var categoryTemplates = []insightTemplate{
	{
		category:    models.CategoryAuthenticationFailure,
		title:       "Authentication Issues",
		description: "%d failures (%.0f%%) were caused by login or credential problems",
		recommendations: []string{
			"Verify test account credentials are valid and not expired",
			"Check that the test account is not locked out by repeated logins",
			"Reuse an authenticated storage state instead of logging in per test",
		},
	},
	{
		category:    models.CategoryNavigationTimeout,
		title:       "Navigation Timeouts",
		description: "%d failures (%.0f%%) timed out waiting for a page navigation",
		recommendations: []string{
			"Confirm the application server is reachable from the test runner",
			"Wait for a specific element or load state instead of the full load event",
			"Increase the navigation timeout for slow environments",
		},
	},
	{
		category:    models.CategoryNetworkTimeout,
		title:       "Network Timeouts",
		description: "%d failures (%.0f%%) timed out on network activity",
		recommendations: []string{
			"Inspect captured network requests for slow or failing endpoints",
			"Mock third-party services that are not under test",
			"Increase operation timeouts or add explicit waits for responses",
		},
	},
	{
		category:    models.CategorySelectorNotFound,
		title:       "Selector Issues",
		description: "%d failures (%.0f%%) could not find the targeted element",
		recommendations: []string{
			"Use stable data-testid attributes instead of CSS classes or text",
			"Check whether the markup changed since the selector was written",
			"Wait for the element to be attached before interacting",
		},
	},
	{
		category:    models.CategoryStrictModeViolation,
		title:       "Ambiguous Selectors",
		description: "%d failures (%.0f%%) matched more than one element",
		recommendations: []string{
			"Narrow selectors with unique attributes or a parent scope",
			"Use .first() or .nth() only when several matches are expected",
		},
	},
	{
		category:    models.CategoryElementNotInteractive,
		title:       "Non-Interactive Elements",
		description: "%d failures (%.0f%%) targeted elements that were hidden, covered or detached",
		recommendations: []string{
			"Wait for the element to be visible and enabled",
			"Dismiss overlays, cookie banners or modals before interacting",
			"Re-query elements after re-renders instead of holding stale handles",
		},
	},
	{
		category:    models.CategoryAssertionFailure,
		title:       "Assertion Mismatches",
		description: "%d failures (%.0f%%) were assertions whose actual value differed from the expected one",
		recommendations: []string{
			"Compare expected and actual values in the assertion details",
			"Check whether test data or copy changed in the application",
			"Use auto-retrying assertions for values that update asynchronously",
		},
	},
	{
		category:    models.CategoryUnknown,
		title:       "Unclassified Failures",
		description: "%d failures (%.0f%%) did not match any known pattern",
		recommendations: []string{
			"Review the stack trace and screenshot of each unclassified failure",
			"Extend the classifier keywords if a new failure type keeps recurring",
		},
	},
}

var flakyRecommendations = []string{
	"Look for race conditions between test steps and application state",
	"Replace fixed sleeps with waits on explicit conditions",
	"Isolate shared test data so parallel workers do not interfere",
}

var environmentRecommendations = []string{
	"Reproduce the failures locally with the affected browser or project",
	"Check for browser-specific CSS, APIs or timing differences",
	"Compare viewport and device settings between projects",
}
