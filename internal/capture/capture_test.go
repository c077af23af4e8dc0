package capture

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
	"github.com/ternarybob/failscope/internal/testutil"
)

func newTestCapturer(t *testing.T) *Capturer {
	t.Helper()
	return NewCapturer(arbor.NewLogger(), Config{
		StepTimeout:   200 * time.Millisecond,
		ScreenshotDir: filepath.Join(t.TempDir(), "screenshots"),
		SessionID:     "session-1",
	})
}

func TestCaptureFullSnapshot(t *testing.T) {
	c := newTestCapturer(t)
	page := testutil.NewFakePage()
	log := c.Watch(page, page)

	page.EmitRequest(models.NetworkEntry{RequestID: "1", URL: "https://shop.example.test/api/cart", Method: "GET"})
	page.EmitResponse(models.NetworkEntry{RequestID: "1", Status: 500})
	page.EmitConsole(models.ConsoleEntry{Type: "error", Text: "boom"})
	require.Len(t, log.Network(), 1)

	result := c.Capture(context.Background(), page, "checkout flow", interfaces.CaptureOptions{
		Screenshot: true,
		FullPage:   true,
		DOMSource:  true,
		StepName:   "after click",
	})

	assert.True(t, result.OK)
	assert.Empty(t, result.Omitted)
	snap := result.Snapshot
	assert.Equal(t, page.PageURL, snap.URL)
	assert.Equal(t, page.PageTitle, snap.Title)
	require.NotNil(t, snap.Viewport)
	assert.Equal(t, 1280, snap.Viewport.Width)
	assert.Equal(t, "[1,2]", snap.LocalStorage["cart"])
	assert.Equal(t, "abc", snap.SessionStorage["token"])
	assert.Len(t, snap.Cookies, 1)
	require.Len(t, snap.Console, 1)
	assert.Equal(t, "boom", snap.Console[0].Text)
	require.Len(t, snap.Network, 1)
	assert.Equal(t, 500, snap.Network[0].Status)
	assert.True(t, snap.Network[0].Failed())
	assert.Contains(t, snap.DOMSource, "submit")

	require.NotEmpty(t, snap.ScreenshotPath)
	assert.Contains(t, snap.ScreenshotPath, filepath.Join("session-1", "after-click-"))
	_, err := os.Stat(snap.ScreenshotPath)
	assert.NoError(t, err)
}

func TestCaptureOmitsFailingSteps(t *testing.T) {
	c := newTestCapturer(t)
	page := testutil.NewFakePage()
	page.Fail["screenshot"] = true
	page.Fail["cookies"] = true

	result := c.Capture(context.Background(), page, "t", interfaces.CaptureOptions{Screenshot: true})

	assert.False(t, result.OK)
	assert.ElementsMatch(t, []string{StepScreenshot, StepCookies}, result.Omitted)
	assert.Equal(t, page.PageURL, result.Snapshot.URL)
	assert.Empty(t, result.Snapshot.ScreenshotPath)
	assert.Nil(t, result.Snapshot.Cookies)
}

func TestCaptureAbandonsSlowSteps(t *testing.T) {
	c := newTestCapturer(t)
	page := testutil.NewFakePage()
	page.Block["title"] = true

	start := time.Now()
	result := c.Capture(context.Background(), page, "t", interfaces.CaptureOptions{})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{StepTitle}, result.Omitted)
	assert.Empty(t, result.Snapshot.Title)
	assert.Equal(t, page.PageURL, result.Snapshot.URL)
}

func TestCaptureSurvivesCancelledContext(t *testing.T) {
	c := newTestCapturer(t)
	page := testutil.NewFakePage()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.Capture(ctx, page, "t", interfaces.CaptureOptions{})
	assert.True(t, result.OK)
	assert.Equal(t, page.PageURL, result.Snapshot.URL)
}

func TestCaptureNilPage(t *testing.T) {
	c := newTestCapturer(t)
	result := c.Capture(context.Background(), nil, "t", interfaces.CaptureOptions{})
	assert.False(t, result.OK)
	assert.Contains(t, result.Omitted, StepURL)
}

func TestScreenshotPathIsDeterministic(t *testing.T) {
	c := newTestCapturer(t)
	at := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)

	p1 := c.ScreenshotPath("login / submit", "ignored", at)
	p2 := c.ScreenshotPath("login / submit", "ignored", at)
	assert.Equal(t, p1, p2)
	assert.True(t, strings.HasSuffix(p1, "login-submit-2026-03-04_05-06-07.008.png"), p1)

	assert.Contains(t, c.ScreenshotPath("", "my test", at), "my-test-")
}

func TestEventLogEvictsOldest(t *testing.T) {
	log := NewEventLog(3, 2)
	for _, text := range []string{"a", "b", "c", "d"} {
		log.AddConsole(models.ConsoleEntry{Type: "log", Text: text})
	}
	console := log.Console()
	require.Len(t, console, 3)
	assert.Equal(t, "b", console[0].Text)
	assert.Equal(t, "d", console[2].Text)

	log.AddRequest(models.NetworkEntry{RequestID: "1", URL: "/one"})
	log.AddRequest(models.NetworkEntry{RequestID: "2", URL: "/two"})
	log.AddRequest(models.NetworkEntry{RequestID: "3", URL: "/three"})
	log.AddFailure(models.NetworkEntry{RequestID: "3", FailureText: "net::ERR_ABORTED"})

	network := log.Network()
	require.Len(t, network, 2)
	assert.Equal(t, "/two", network[0].URL)
	assert.Equal(t, "net::ERR_ABORTED", network[1].FailureText)
}

func TestEventLogUnmatchedResponse(t *testing.T) {
	log := NewEventLog(1, 5)
	log.AddResponse(models.NetworkEntry{RequestID: "x", URL: "/orphan", Status: 404})
	network := log.Network()
	require.Len(t, network, 1)
	assert.Equal(t, 404, network[0].Status)
}

func TestDescribeMatches(t *testing.T) {
	html := `<html><body>
		<button class="submit" id="save">Save</button>
		<button class="submit">Cancel</button>
		<a href="/">Home</a>
	</body></html>`

	count, descriptions, err := DescribeMatches(html, "button.submit", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, descriptions, 1)
	assert.Contains(t, descriptions[0], `id="save"`)
	assert.Contains(t, descriptions[0], "Save")

	count, _, err = DescribeMatches(html, "", 3)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEnrichStrictMode(t *testing.T) {
	details := &models.StrictModeDetails{Selector: "button.submit"}
	html := testutil.NewFakePage().HTML

	enriched := EnrichStrictMode(details, html, 3)
	require.NotNil(t, enriched)
	assert.Equal(t, 2, enriched.ElementsFound)
	assert.Len(t, enriched.Elements, 2)
	assert.Contains(t, enriched.SuggestedFix, ".first()")
	assert.Zero(t, details.ElementsFound, "input must not be mutated")

	full := &models.StrictModeDetails{Selector: "x", ElementsFound: 4, Elements: []string{"a"}}
	assert.Same(t, full, EnrichStrictMode(full, html, 3))
}

func TestUnwatchPausesWithoutResubscribing(t *testing.T) {
	c := newTestCapturer(t)
	page := testutil.NewFakePage()

	log := c.Watch(page, page)
	page.EmitRequest(models.NetworkEntry{RequestID: "1", URL: "https://shop.example.test/a"})
	c.Unwatch(page)

	page.EmitConsole(models.ConsoleEntry{Type: "error", Text: "between tests"})
	assert.Empty(t, log.Network())
	assert.Empty(t, log.Console())

	again := c.Watch(page, page)
	assert.Same(t, log, again)
	assert.Equal(t, 4, page.Subscribers())

	page.EmitResponse(models.NetworkEntry{RequestID: "1", Status: 200})
	require.Len(t, again.Network(), 1, "a response for a request dropped on unwatch is recorded on its own")
	assert.Equal(t, 200, again.Network()[0].Status)
}

func TestDescribeMatchesTruncatesOnRuneBoundary(t *testing.T) {
	html := "<html><body><p class=\"note\">x" + strings.Repeat("ü", 80) + "</p></body></html>"

	count, descriptions, err := DescribeMatches(html, "p.note", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, descriptions, 1)
	assert.True(t, utf8.ValidString(descriptions[0]))
	assert.True(t, strings.HasSuffix(descriptions[0], "..."))
}
