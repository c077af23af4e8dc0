package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// LaunchOptions configures a local Chrome instance
type LaunchOptions struct {
	Headless  bool
	UserAgent string
	ExecPath  string // empty uses chromedp's lookup
}

// Launch starts a browser and returns a Page on its first tab. The cancel
// func closes the tab and the browser process.
func Launch(ctx context.Context, logger arbor.ILogger, opts LaunchOptions) (*Page, context.CancelFunc, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	cancel := func() {
		browserCancel()
		allocatorCancel()
	}

	// first Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug().Bool("headless", opts.Headless).Msg("Browser started")
	return NewPage(browserCtx, logger), cancel, nil
}
