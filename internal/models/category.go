package models

// Category is the root-cause classification of a single failure.
// The set is closed: anything that cannot be matched is CategoryUnknown.
type Category string

const (
	CategorySelectorNotFound      Category = "SELECTOR_NOT_FOUND"
	CategoryStrictModeViolation   Category = "STRICT_MODE_VIOLATION"
	CategoryNetworkTimeout        Category = "NETWORK_TIMEOUT"
	CategoryAuthenticationFailure Category = "AUTHENTICATION_FAILURE"
	CategoryElementNotInteractive Category = "ELEMENT_NOT_INTERACTIVE"
	CategoryNavigationTimeout     Category = "NAVIGATION_TIMEOUT"
	CategoryAssertionFailure      Category = "ASSERTION_FAILURE"
	CategoryUnknown               Category = "UNKNOWN"
)

// AllCategories returns every category in declaration order
func AllCategories() []Category {
	return []Category{
		CategorySelectorNotFound,
		CategoryStrictModeViolation,
		CategoryNetworkTimeout,
		CategoryAuthenticationFailure,
		CategoryElementNotInteractive,
		CategoryNavigationTimeout,
		CategoryAssertionFailure,
		CategoryUnknown,
	}
}

// IsValid reports whether c is one of the fixed taxonomy values
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns a short human-readable name for reports
func (c Category) Label() string {
	switch c {
	case CategorySelectorNotFound:
		return "Selector not found"
	case CategoryStrictModeViolation:
		return "Strict mode violation"
	case CategoryNetworkTimeout:
		return "Network timeout"
	case CategoryAuthenticationFailure:
		return "Authentication failure"
	case CategoryElementNotInteractive:
		return "Element not interactive"
	case CategoryNavigationTimeout:
		return "Navigation timeout"
	case CategoryAssertionFailure:
		return "Assertion failure"
	default:
		return "Unknown"
	}
}
