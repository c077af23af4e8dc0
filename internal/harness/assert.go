package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/failscope/internal/capture"
	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
	"github.com/ternarybob/failscope/internal/store"
)

// Operation names recorded with assertion failures
const (
	OpEqual   = "toEqual"
	OpContain = "toContain"
	OpCount   = "toHaveCount"
	OpURL     = "toHaveURL"
	OpText    = "toHaveText"
	OpVisible = "toBeVisible"
)

const visibilityScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return style.display !== "none" && style.visibility !== "hidden" && rect.width > 0 && rect.height > 0;
})()`

// AssertionError is returned by a failed Asserter check after the failure
// has been recorded. Callers fail the test with it.
type AssertionError struct {
	Operation string
	Expected  interface{}
	Actual    interface{}
	Message   string
	Record    models.FailureRecord
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Asserter wraps value and page checks so a failing check is recorded with
// its operation, expected and actual values before it is returned
type Asserter struct {
	recorder FailureRecorder
	page     interfaces.Page
	testName string
	extra    store.ExtraInfo
}

// NewAsserter binds assertions to one test; page may be nil for value-only checks
func NewAsserter(recorder FailureRecorder, page interfaces.Page, testName string, extra store.ExtraInfo) *Asserter {
	return &Asserter{
		recorder: recorder,
		page:     page,
		testName: testName,
		extra:    extra,
	}
}

// Equal checks that actual equals expected
func (a *Asserter) Equal(ctx context.Context, actual, expected interface{}) error {
	if assert.ObjectsAreEqual(expected, actual) {
		return nil
	}
	return a.fail(ctx, OpEqual, "", expected, actual)
}

// Contains checks that actual contains the expected substring
func (a *Asserter) Contains(ctx context.Context, actual, expected string) error {
	if strings.Contains(actual, expected) {
		return nil
	}
	return a.fail(ctx, OpContain, "", expected, actual)
}

// Count checks how many elements match selector in the current DOM
func (a *Asserter) Count(ctx context.Context, selector string, expected int) error {
	html, err := a.content(ctx)
	if err != nil {
		return a.fail(ctx, OpCount, selector, expected, unavailable(err))
	}
	actual, _, err := capture.DescribeMatches(html, selector, 1)
	if err != nil {
		return a.fail(ctx, OpCount, selector, expected, unavailable(err))
	}
	if actual == expected {
		return nil
	}
	return a.fail(ctx, OpCount, selector, expected, actual)
}

// URL checks the page location; a trailing "*" matches by prefix
func (a *Asserter) URL(ctx context.Context, expected string) error {
	if a.page == nil {
		return a.fail(ctx, OpURL, "", expected, unavailable(errNoPage))
	}
	actual, err := a.page.URL(ctx)
	if err != nil {
		return a.fail(ctx, OpURL, "", expected, unavailable(err))
	}
	if prefix, ok := strings.CutSuffix(expected, "*"); ok {
		if strings.HasPrefix(actual, prefix) {
			return nil
		}
	} else if actual == expected {
		return nil
	}
	return a.fail(ctx, OpURL, "", expected, actual)
}

// Text checks the normalised text of the first element matching selector
func (a *Asserter) Text(ctx context.Context, selector, expected string) error {
	html, err := a.content(ctx)
	if err != nil {
		return a.fail(ctx, OpText, selector, expected, unavailable(err))
	}
	actual, found, err := capture.MatchText(html, selector)
	if err != nil {
		return a.fail(ctx, OpText, selector, expected, unavailable(err))
	}
	if !found {
		return a.fail(ctx, OpText, selector, expected, "<no matching element>")
	}
	if actual == strings.Join(strings.Fields(expected), " ") {
		return nil
	}
	return a.fail(ctx, OpText, selector, expected, actual)
}

// Visible checks that the first element matching selector is rendered
func (a *Asserter) Visible(ctx context.Context, selector string) error {
	if a.page == nil {
		return a.fail(ctx, OpVisible, selector, true, unavailable(errNoPage))
	}
	quoted, _ := json.Marshal(selector)
	var visible bool
	if err := a.page.Evaluate(ctx, fmt.Sprintf(visibilityScript, quoted), &visible); err != nil {
		return a.fail(ctx, OpVisible, selector, true, unavailable(err))
	}
	if visible {
		return nil
	}
	return a.fail(ctx, OpVisible, selector, true, false)
}

var errNoPage = errors.New("no page")

func (a *Asserter) content(ctx context.Context) (string, error) {
	if a.page == nil {
		return "", errNoPage
	}
	return a.page.Content(ctx)
}

func (a *Asserter) fail(ctx context.Context, operation, selector string, expected, actual interface{}) error {
	subject := "received"
	if selector != "" {
		subject = fmt.Sprintf("locator(%q)", selector)
	}
	message := fmt.Sprintf("assertion failed: expect(%s).%s(%v), received %v", subject, operation, expected, actual)

	extra := a.extra
	extra.Assertion = &store.AssertionInput{Operation: operation, Expected: expected, Actual: actual}
	if selector != "" && extra.Selector == "" {
		extra.Selector = selector
	}

	assertionErr := &AssertionError{
		Operation: operation,
		Expected:  expected,
		Actual:    actual,
		Message:   message,
	}
	if a.recorder != nil {
		assertionErr.Record = a.recorder.Record(ctx, errors.New(message), a.page, a.testName, extra)
	}
	return assertionErr
}

func unavailable(err error) string {
	return fmt.Sprintf("<unavailable: %v>", err)
}

// OnTestFailure records err from a test-failure hook and hands it back so
// the caller still fails the test with the original error. Errors already
// recorded by an Asserter are not recorded twice.
func OnTestFailure(ctx context.Context, recorder FailureRecorder, err error, page interfaces.Page, testName string, extra store.ExtraInfo) error {
	if err == nil || recorder == nil {
		return err
	}
	var assertionErr *AssertionError
	if errors.As(err, &assertionErr) {
		return err
	}
	recorder.Record(ctx, err, page, testName, extra)
	return err
}
