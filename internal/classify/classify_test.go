package classify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/failscope/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    models.Category
	}{
		{"strict mode phrase", "Error: strict mode violation: locator('a') resolved to 3 elements", models.CategoryStrictModeViolation},
		{"resolved count only", "getByRole('button') resolved to 2 elements", models.CategoryStrictModeViolation},
		{"locator", "locator('#missing') did not match", models.CategorySelectorNotFound},
		{"selector", "waiting for selector \".cart\"", models.CategorySelectorNotFound},
		{"not found", "Product card not found", models.CategorySelectorNotFound},
		{"navigation timeout", "Timeout 30000ms exceeded during navigation to /checkout", models.CategoryNavigationTimeout},
		{"navigation deadline", "navigating to http://shop: context deadline exceeded", models.CategoryNavigationTimeout},
		{"plain timeout", "Timeout 5000ms exceeded", models.CategoryNetworkTimeout},
		{"network", "network error while fetching /api/cart", models.CategoryNetworkTimeout},
		{"chromium net error", "page load failed: net::ERR_CONNECTION_REFUSED", models.CategoryNetworkTimeout},
		{"deadline", "context deadline exceeded", models.CategoryNetworkTimeout},
		{"login", "Login failed for standard_user", models.CategoryAuthenticationFailure},
		{"credential", "Invalid credentials supplied", models.CategoryAuthenticationFailure},
		{"not clickable", "Element is not clickable at point (10, 20)", models.CategoryElementNotInteractive},
		{"not visible", "element is not visible", models.CategoryElementNotInteractive},
		{"detached", "Element is detached from the DOM", models.CategoryElementNotInteractive},
		{"expect", "expect(received).toBe(expected)", models.CategoryAssertionFailure},
		{"assertion", "Assertion failed: totals differ", models.CategoryAssertionFailure},
		{"case insensitive", "STRICT MODE VIOLATION", models.CategoryStrictModeViolation},
		{"unknown", "something odd happened", models.CategoryUnknown},
		{"empty", "", models.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message))
		})
	}
}

func TestClassifyNavigationBeatsNetwork(t *testing.T) {
	messages := []string{
		"timeout navigation",
		"Navigation failed because of Timeout",
		"network timeout during navigation",
		"TIMEOUT waiting for NAVIGATION",
	}
	for _, msg := range messages {
		assert.Equal(t, models.CategoryNavigationTimeout, Classify(msg), msg)
	}
}

func TestClassifyAlwaysReturnsValidCategory(t *testing.T) {
	inputs := []string{"", " ", "\x00\x01", strings.Repeat("x", 10000), "résumé ✓", "expect"}
	for _, in := range inputs {
		assert.True(t, Classify(in).IsValid())
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, models.CategoryUnknown, ClassifyError(nil))
	assert.Equal(t, models.CategoryAuthenticationFailure, ClassifyError(errors.New("authentication required")))
}

func TestExtractStrictMode(t *testing.T) {
	message := "Error: strict mode violation: locator('button.submit') resolved to 2 elements:\n" +
		"    1) <button class=\"submit\">Save</button> aka getByRole('button', { name: 'Save' })\n" +
		"    2) <button class=\"submit\">Cancel</button> aka getByRole('button', { name: 'Cancel' })\n"

	details := ExtractStrictMode(message, "", 0)
	require.NotNil(t, details)
	assert.Equal(t, 2, details.ElementsFound)
	assert.Equal(t, "button.submit", details.Selector)
	assert.Len(t, details.Elements, 2)
	assert.Contains(t, details.Elements[0], "Save")
	assert.Contains(t, details.SuggestedFix, ".first()")
}

func TestExtractStrictModeCallerSelector(t *testing.T) {
	details := ExtractStrictMode("strict mode violation ... resolved to 2 elements: ...", "button.submit", 3)
	require.NotNil(t, details)
	assert.Equal(t, "button.submit", details.Selector)
	assert.Equal(t, 2, details.ElementsFound)
	assert.Contains(t, details.SuggestedFix, ".first()")
}

func TestExtractStrictModeLimitsElements(t *testing.T) {
	var b strings.Builder
	b.WriteString("strict mode violation: getByRole('link') resolved to 6 elements:\n")
	for i := 1; i <= 6; i++ {
		b.WriteString("  ")
		b.WriteString(string(rune('0' + i)))
		b.WriteString(") <a>link</a>\n")
	}

	details := ExtractStrictMode(b.String(), "", 3)
	require.NotNil(t, details)
	assert.Equal(t, 6, details.ElementsFound)
	assert.Equal(t, "getByRole('link')", details.Selector)
	assert.Len(t, details.Elements, 3)
	assert.Contains(t, details.SuggestedFix, "too broad")
}

func TestExtractStrictModeIgnoresOtherCategories(t *testing.T) {
	assert.Nil(t, ExtractStrictMode("Timeout 5000ms exceeded", "a", 3))
}

func TestAssertionFix(t *testing.T) {
	tests := []struct {
		operation string
		family    string
	}{
		{"toContain", OpContains},
		{"contains", OpContains},
		{"toBe", OpEquality},
		{"toEqual", OpEquality},
		{"equals", OpEquality},
		{"toBeVisible", OpVisibility},
		{"not.toBeHidden", OpVisibility},
		{"toHaveText", OpText},
		{"toContainText", OpText},
		{"toHaveURL", OpURL},
		{"toHaveCount", OpCount},
		{"mystery", ""},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			assert.Equal(t, tt.family, OperationFamily(tt.operation))
			if tt.family == "" {
				assert.Equal(t, defaultAssertionFix, AssertionFix(tt.operation))
			} else {
				assert.Equal(t, assertionFixes[tt.family], AssertionFix(tt.operation))
			}
		})
	}
}

func TestNewAssertionDetails(t *testing.T) {
	details := NewAssertionDetails("toHaveCount", 3, 1)
	assert.Equal(t, "toHaveCount", details.Operation)
	assert.Equal(t, "3", details.ExpectedValue)
	assert.Equal(t, "1", details.ActualValue)
	assert.Equal(t, assertionFixes[OpCount], details.SuggestedFix)

	nilDetails := NewAssertionDetails("toBe", nil, "x")
	assert.Equal(t, "<nil>", nilDetails.ExpectedValue)
}
