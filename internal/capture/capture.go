// Package capture takes best-effort snapshots of a browser page at the moment
// a test fails. A failing capture step never prevents the failure itself from
// being recorded: the step is omitted, logged, and the rest continues.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
)

// DefaultStepTimeout bounds each individual capture step
const DefaultStepTimeout = 3 * time.Second

// Step names, also used in CaptureResult.Omitted
const (
	StepURL            = "url"
	StepTitle          = "title"
	StepViewport       = "viewport"
	StepLocalStorage   = "localStorage"
	StepSessionStorage = "sessionStorage"
	StepCookies        = "cookies"
	StepScreenshot     = "screenshot"
	StepDOM            = "dom"
)

const storageScript = `(() => {
	const out = {};
	const s = window.%s;
	for (let i = 0; i < s.length; i++) {
		const k = s.key(i);
		out[k] = s.getItem(k);
	}
	return out;
})()`

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Config configures a Capturer
type Config struct {
	StepTimeout   time.Duration
	ScreenshotDir string
	SessionID     string
	ConsoleLimit  int
	NetworkLimit  int
}

// Capturer implements interfaces.ContextCapturer
type Capturer struct {
	logger arbor.ILogger
	config Config
	now    func() time.Time

	mu      sync.Mutex
	watched map[interfaces.Page]*EventLog
}

// Compile-time assertion
var _ interfaces.ContextCapturer = (*Capturer)(nil)

// NewCapturer creates a capturer; zero config values fall back to defaults
func NewCapturer(logger arbor.ILogger, config Config) *Capturer {
	if config.StepTimeout <= 0 {
		config.StepTimeout = DefaultStepTimeout
	}
	if config.ScreenshotDir == "" {
		config.ScreenshotDir = filepath.Join("error-logs", "screenshots")
	}
	return &Capturer{
		logger:  logger,
		config:  config,
		now:     time.Now,
		watched: make(map[interfaces.Page]*EventLog),
	}
}

// Watch starts recording console and network activity for page. A page
// keeps one event log for its lifetime; watching it again resumes that log.
func (c *Capturer) Watch(page interfaces.Page, events interfaces.PageEvents) *EventLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	log, ok := c.watched[page]
	if !ok {
		log = NewEventLog(c.config.ConsoleLimit, c.config.NetworkLimit)
		c.watched[page] = log
	}
	log.Attach(events)
	log.Resume()
	return log
}

// Unwatch pauses the event log for page and discards what it buffered.
// The log stays attached so the next Watch does not subscribe again.
func (c *Capturer) Unwatch(page interfaces.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if log, ok := c.watched[page]; ok {
		log.Pause()
	}
}

func (c *Capturer) eventLog(page interfaces.Page) *EventLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watched[page]
}

// Capture snapshots page. Each step runs under its own timeout; a step that
// fails or overruns is abandoned and listed in Omitted.
func (c *Capturer) Capture(ctx context.Context, page interfaces.Page, testName string, opts interfaces.CaptureOptions) models.CaptureResult {
	snapshot := models.ContextSnapshot{CapturedAt: c.now()}
	result := models.CaptureResult{}

	if page == nil {
		result.Omitted = []string{StepURL, StepTitle, StepViewport, StepLocalStorage, StepSessionStorage, StepCookies}
		result.Snapshot = snapshot
		return result
	}

	// The test's own context is often already expired when a failure is
	// recorded (timeouts); steps are bounded by StepTimeout instead.
	base := context.WithoutCancel(ctx)
	logger := c.logger.WithCorrelationId(c.config.SessionID)

	omit := func(step string, err error) {
		result.Omitted = append(result.Omitted, step)
		logger.Warn().Err(err).Str("step", step).Str("test", testName).Msg("Context capture step failed, omitting")
	}

	if v, err := runStep(base, c.config.StepTimeout, page.URL); err != nil {
		omit(StepURL, err)
	} else {
		snapshot.URL = v
	}

	if v, err := runStep(base, c.config.StepTimeout, page.Title); err != nil {
		omit(StepTitle, err)
	} else {
		snapshot.Title = v
	}

	if v, err := runStep(base, c.config.StepTimeout, page.ViewportSize); err != nil {
		omit(StepViewport, err)
	} else {
		snapshot.Viewport = &v
	}

	if v, err := runStep(base, c.config.StepTimeout, storageReader(page, "localStorage")); err != nil {
		omit(StepLocalStorage, err)
	} else {
		snapshot.LocalStorage = v
	}

	if v, err := runStep(base, c.config.StepTimeout, storageReader(page, "sessionStorage")); err != nil {
		omit(StepSessionStorage, err)
	} else {
		snapshot.SessionStorage = v
	}

	if v, err := runStep(base, c.config.StepTimeout, page.Cookies); err != nil {
		omit(StepCookies, err)
	} else {
		snapshot.Cookies = v
	}

	if log := c.eventLog(page); log != nil {
		snapshot.Console = log.Console()
		snapshot.Network = log.Network()
	}

	if opts.Screenshot {
		path := c.ScreenshotPath(opts.StepName, testName, snapshot.CapturedAt)
		_, err := runStep(base, c.config.StepTimeout, func(ctx context.Context) (struct{}, error) {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return struct{}{}, fmt.Errorf("failed to create screenshot directory: %w", err)
			}
			return struct{}{}, page.Screenshot(ctx, path, opts.FullPage)
		})
		if err != nil {
			omit(StepScreenshot, err)
		} else {
			snapshot.ScreenshotPath = path
		}
	}

	if opts.DOMSource {
		if v, err := runStep(base, c.config.StepTimeout, page.Content); err != nil {
			omit(StepDOM, err)
		} else {
			snapshot.DOMSource = v
		}
	}

	result.Snapshot = snapshot
	result.OK = len(result.Omitted) == 0

	logger.Debug().
		Str("test", testName).
		Bool("ok", result.OK).
		Int("omitted", len(result.Omitted)).
		Msg("Context captured")

	return result
}

// ScreenshotPath is the deterministic screenshot location for a step:
// <dir>/<session>/<step>-<timestamp>.png
func (c *Capturer) ScreenshotPath(stepName, testName string, at time.Time) string {
	name := stepName
	if name == "" {
		name = testName
	}
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "-"), "-")
	if name == "" {
		name = "failure"
	}
	session := unsafeFileChars.ReplaceAllString(c.config.SessionID, "-")
	if session == "" {
		session = "session"
	}
	filename := fmt.Sprintf("%s-%s.png", name, at.Format("2006-01-02_15-04-05.000"))
	return filepath.Join(c.config.ScreenshotDir, session, filename)
}

func storageReader(page interfaces.Page, which string) func(ctx context.Context) (map[string]string, error) {
	return func(ctx context.Context) (map[string]string, error) {
		out := map[string]string{}
		if err := page.Evaluate(ctx, fmt.Sprintf(storageScript, which), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// runStep runs fn on its own goroutine and abandons it after timeout.
// The result is only handed back on success, so an abandoned step never
// writes into the snapshot.
func runStep[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome{value: zero, err: fmt.Errorf("capture step panicked: %v", r)}
			}
		}()
		v, err := fn(stepCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-stepCtx.Done():
		var zero T
		return zero, fmt.Errorf("capture step abandoned: %w", stepCtx.Err())
	}
}
