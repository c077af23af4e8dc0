package harness

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/capture"
	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
	"github.com/ternarybob/failscope/internal/store"
)

const clearStorageScript = `(() => { try { localStorage.clear(); sessionStorage.clear(); } catch (e) {} return true; })()`

// FailureRecorder is the part of the failure store the adapters need
type FailureRecorder interface {
	Record(ctx context.Context, err error, page interfaces.Page, testName string, extra store.ExtraInfo) models.FailureRecord
	MarkOutcome(testName, project string, outcome models.TestOutcome)
}

// PageWatcher attaches console/network buffering to a page for the life of a test
type PageWatcher interface {
	Watch(page interfaces.Page, events interfaces.PageEvents) *capture.EventLog
	Unwatch(page interfaces.Page)
}

// SessionToken is handed out by Before and passed back to After
type SessionToken struct {
	ID        string
	TestName  string
	Project   string
	StartedAt time.Time
}

// IsolationAdapter resets browser state around each test. It is the only
// place that decides between logging the discarded state and clearing silently.
type IsolationAdapter struct {
	logger   arbor.ILogger
	recorder FailureRecorder
	watcher  PageWatcher
	project  string
	now      func() time.Time
}

// NewIsolationAdapter creates an adapter; watcher may be nil
func NewIsolationAdapter(logger arbor.ILogger, recorder FailureRecorder, watcher PageWatcher, project string) *IsolationAdapter {
	return &IsolationAdapter{
		logger:   logger,
		recorder: recorder,
		watcher:  watcher,
		project:  project,
		now:      time.Now,
	}
}

// Before starts event buffering and clears cookies and storage. Reset
// problems are logged only; the error return is reserved for a missing page.
func (a *IsolationAdapter) Before(ctx context.Context, page interfaces.Page, testName string) (SessionToken, error) {
	if page == nil {
		return SessionToken{}, errors.New("isolation requires a page")
	}

	token := SessionToken{
		ID:        common.NewIsolationToken(),
		TestName:  testName,
		Project:   a.project,
		StartedAt: a.now(),
	}

	if a.watcher != nil {
		if events, ok := page.(interfaces.PageEvents); ok {
			a.watcher.Watch(page, events)
		}
	}

	a.reset(ctx, page, testName)

	a.logger.Debug().
		Str("test", testName).
		Str("token", token.ID).
		Msg("Test isolation started")
	return token, nil
}

// After marks the test outcome and resets browser state. A failed test has
// its discarded state logged first; a passing test is cleared silently.
func (a *IsolationAdapter) After(ctx context.Context, page interfaces.Page, testName string, token SessionToken, outcome models.TestOutcome) {
	if a.recorder != nil {
		a.recorder.MarkOutcome(testName, a.project, outcome)
	}
	if page == nil {
		return
	}

	if outcome == models.OutcomeFailed {
		a.logDiscardedState(ctx, page, testName, token)
	}

	a.reset(ctx, page, testName)

	if a.watcher != nil {
		a.watcher.Unwatch(page)
	}

	a.logger.Debug().
		Str("test", testName).
		Str("token", token.ID).
		Str("outcome", string(outcome)).
		Dur("duration", a.now().Sub(token.StartedAt)).
		Msg("Test isolation finished")
}

func (a *IsolationAdapter) logDiscardedState(ctx context.Context, page interfaces.Page, testName string, token SessionToken) {
	url, err := page.URL(ctx)
	if err != nil {
		url = "unavailable"
	}
	cookies := -1
	if jar, err := page.Cookies(ctx); err == nil {
		cookies = len(jar)
	}
	a.logger.Warn().
		Str("test", testName).
		Str("token", token.ID).
		Str("url", url).
		Int("cookies", cookies).
		Msg("Clearing browser state after failed test")
}

func (a *IsolationAdapter) reset(ctx context.Context, page interfaces.Page, testName string) {
	if err := page.ClearCookies(ctx); err != nil {
		a.logger.Warn().Err(err).Str("test", testName).Msg("Failed to clear cookies")
	}
	if err := page.Evaluate(ctx, clearStorageScript, nil); err != nil {
		a.logger.Warn().Err(err).Str("test", testName).Msg("Failed to clear web storage")
	}
}
