// Package browser adapts a chromedp browser context to the page contract
// used by the failure subsystem.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
)

// fullPageQuality makes chromedp encode full-page shots as PNG; any lower
// value produces JPEG
const fullPageQuality = 100

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Page wraps a chromedp context (one browser tab)
type Page struct {
	ctx    context.Context
	logger arbor.ILogger

	mu         sync.RWMutex
	onRequest  []func(models.NetworkEntry)
	onResponse []func(models.NetworkEntry)
	onFailed   []func(models.NetworkEntry)
	onConsole  []func(models.ConsoleEntry)
	listening  bool
	now        func() time.Time
}

// Compile-time assertions
var (
	_ interfaces.Page       = (*Page)(nil)
	_ interfaces.PageEvents = (*Page)(nil)
)

// NewPage wraps an existing chromedp browser context
func NewPage(browserCtx context.Context, logger arbor.ILogger) *Page {
	return &Page{ctx: browserCtx, logger: logger, now: time.Now}
}

// Context returns the underlying chromedp context
func (p *Page) Context() context.Context {
	return p.ctx
}

// run executes actions against the browser, bounded by ctx's deadline
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return location, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

func (p *Page) ViewportSize(ctx context.Context) (models.Viewport, error) {
	var vp models.Viewport
	if err := p.run(ctx, chromedp.Evaluate(`({width: window.innerWidth, height: window.innerHeight})`, &vp)); err != nil {
		return models.Viewport{}, fmt.Errorf("failed to read viewport: %w", err)
	}
	return vp, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, out interface{}) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, fullPageQuality)
	}
	if err := p.run(ctx, action); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writePNG(path, buf)
}

// writePNG saves a screenshot, refusing bytes that are not PNG encoded
func writePNG(path string, buf []byte) error {
	if !bytes.HasPrefix(buf, pngSignature) {
		return fmt.Errorf("screenshot is not PNG encoded (%d bytes)", len(buf))
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}

func (p *Page) Cookies(ctx context.Context) ([]models.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return out, nil
}

func (p *Page) ClearCookies(ctx context.Context) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read DOM source: %w", err)
	}
	return html, nil
}

func (p *Page) OnRequest(fn func(models.NetworkEntry)) {
	p.subscribe(func() { p.onRequest = append(p.onRequest, fn) })
}

func (p *Page) OnResponse(fn func(models.NetworkEntry)) {
	p.subscribe(func() { p.onResponse = append(p.onResponse, fn) })
}

func (p *Page) OnRequestFailed(fn func(models.NetworkEntry)) {
	p.subscribe(func() { p.onFailed = append(p.onFailed, fn) })
}

func (p *Page) OnConsoleMessage(fn func(models.ConsoleEntry)) {
	p.subscribe(func() { p.onConsole = append(p.onConsole, fn) })
}

// subscribe registers a handler and installs the target listener once
func (p *Page) subscribe(add func()) {
	p.mu.Lock()
	add()
	start := !p.listening
	p.listening = true
	p.mu.Unlock()

	if start {
		chromedp.ListenTarget(p.ctx, p.handleEvent)
		// Network events are only emitted once the domain is enabled
		if err := chromedp.Run(p.ctx, network.Enable()); err != nil && p.logger != nil {
			p.logger.Warn().Err(err).Msg("Failed to enable network events, network log will be empty")
		}
	}
}

// handleEvent translates CDP events into subsystem entries
func (p *Page) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request == nil {
			return
		}
		p.emitNetwork(p.requestHandlers(), models.NetworkEntry{
			RequestID: string(e.RequestID),
			URL:       e.Request.URL,
			Method:    e.Request.Method,
			StartedAt: p.now(),
		})
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		p.emitNetwork(p.responseHandlers(), models.NetworkEntry{
			RequestID: string(e.RequestID),
			URL:       e.Response.URL,
			Status:    int(e.Response.Status),
			StartedAt: p.now(),
		})
	case *network.EventLoadingFailed:
		text := e.ErrorText
		if e.Canceled && text == "" {
			text = "canceled"
		}
		p.emitNetwork(p.failedHandlers(), models.NetworkEntry{
			RequestID:   string(e.RequestID),
			FailureText: text,
			StartedAt:   p.now(),
		})
	case *runtime.EventConsoleAPICalled:
		var parts []string
		for _, arg := range e.Args {
			if arg == nil {
				continue
			}
			if arg.Value != nil {
				parts = append(parts, strings.Trim(string(arg.Value), `"`))
			} else if arg.Description != "" {
				parts = append(parts, arg.Description)
			}
		}
		p.emitConsole(models.ConsoleEntry{
			Type:      string(e.Type),
			Text:      strings.Join(parts, " "),
			Timestamp: p.now(),
		})
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		text := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			text = e.ExceptionDetails.Exception.Description
		}
		p.emitConsole(models.ConsoleEntry{
			Type:      "exception",
			Text:      text,
			Timestamp: p.now(),
		})
	}
}

func (p *Page) requestHandlers() []func(models.NetworkEntry) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.onRequest
}

func (p *Page) responseHandlers() []func(models.NetworkEntry) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.onResponse
}

func (p *Page) failedHandlers() []func(models.NetworkEntry) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.onFailed
}

func (p *Page) emitNetwork(handlers []func(models.NetworkEntry), entry models.NetworkEntry) {
	for _, fn := range handlers {
		common.SafeCall(p.logger, "network subscriber", func() { fn(entry) })
	}
}

func (p *Page) emitConsole(entry models.ConsoleEntry) {
	p.mu.RLock()
	handlers := p.onConsole
	p.mu.RUnlock()
	for _, fn := range handlers {
		common.SafeCall(p.logger, "console subscriber", func() { fn(entry) })
	}
}
