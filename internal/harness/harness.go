// Package harness wires the failure subsystem into a test run: per-test
// isolation, recorded assertions and the end-of-run flush.
package harness

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/archive"
	"github.com/ternarybob/failscope/internal/browser"
	"github.com/ternarybob/failscope/internal/capture"
	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
	"github.com/ternarybob/failscope/internal/store"
)

// Harness holds the components one test run shares
type Harness struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Store    *store.Store
	Capturer *capture.Capturer
	Archive  *archive.Archive
}

// New builds the capturer, optional run archive and failure store from config
func New(logger arbor.ILogger, config *common.Config) (*Harness, error) {
	if config == nil {
		config = common.NewDefaultConfig()
	}
	h := &Harness{
		Config: config,
		Logger: logger,
	}

	opts := store.OptionsFromConfig(config)
	opts.SessionID = common.NewSessionID()

	h.Capturer = capture.NewCapturer(logger, capture.Config{
		StepTimeout:   config.Capture.StepTimeoutDuration(),
		ScreenshotDir: config.ScreenshotPath(),
		SessionID:     opts.SessionID,
		ConsoleLimit:  config.Capture.ConsoleLimit,
		NetworkLimit:  config.Capture.NetworkLimit,
	})
	opts.Capturer = h.Capturer

	if config.Archive.Enabled {
		a, err := archive.Open(logger, config.ArchivePath(), config.Archive.ResetOnStartup)
		if err != nil {
			return nil, fmt.Errorf("failed to open run archive: %w", err)
		}
		h.Archive = a
		opts.Archive = a
	}

	h.Store = store.New(logger, opts)

	logger.Info().
		Str("session", opts.SessionID).
		Str("dir", opts.Dir).
		Bool("archive", h.Archive != nil).
		Msg("Failure harness initialized")
	return h, nil
}

// NewPage wraps a chromedp tab context so it can be isolated, asserted on
// and captured
func (h *Harness) NewPage(browserCtx context.Context) *browser.Page {
	return browser.NewPage(browserCtx, h.Logger)
}

// LaunchPage starts a local browser and returns its first tab
func (h *Harness) LaunchPage(ctx context.Context, headless bool) (*browser.Page, context.CancelFunc, error) {
	return browser.Launch(ctx, h.Logger, browser.LaunchOptions{
		Headless:  headless,
		UserAgent: "Failscope/" + common.GetVersion(),
	})
}

// Isolation returns an isolation adapter for one project
func (h *Harness) Isolation(project string) *IsolationAdapter {
	return NewIsolationAdapter(h.Logger, h.Store, h.Capturer, project)
}

// Asserter returns recorded assertions for one test
func (h *Harness) Asserter(page interfaces.Page, testName string, extra store.ExtraInfo) *Asserter {
	return NewAsserter(h.Store, page, testName, extra)
}

// OnTestFailure records err for testName and returns it unchanged
func (h *Harness) OnTestFailure(ctx context.Context, err error, page interfaces.Page, testName string, extra store.ExtraInfo) error {
	return OnTestFailure(ctx, h.Store, err, page, testName, extra)
}

// Close finalizes the run and closes the archive
func (h *Harness) Close(ctx context.Context) (models.RunDump, error) {
	dump := h.Store.Finalize(ctx)

	if h.Archive != nil {
		if _, err := h.Archive.Prune(ctx, h.Config.Archive.KeepRuns); err != nil {
			h.Logger.Warn().Err(err).Msg("Failed to prune run archive")
		}
		if err := h.Archive.Close(); err != nil {
			h.Logger.Warn().Err(err).Msg("Failed to close run archive")
			return dump, fmt.Errorf("failed to close run archive: %w", err)
		}
	}
	return dump, nil
}
