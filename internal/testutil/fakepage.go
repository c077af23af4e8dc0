// Package testutil holds shared fakes for tests that need a browser page.
// NOTE: This is NOT a test file - it is imported by _test.go files in several packages.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/ternarybob/failscope/internal/models"
)

// ErrPageClosed is what a failing FakePage step returns
var ErrPageClosed = errors.New("target page, context or browser has been closed")

// FakePage is an in-memory interfaces.Page and interfaces.PageEvents.
// Set Fail[step] to make a step error, Block[step] to make it hang until ctx ends.
type FakePage struct {
	mu sync.Mutex

	PageURL        string
	PageTitle      string
	Viewport       models.Viewport
	LocalStorage   map[string]string
	SessionStorage map[string]string
	CookieJar      []models.Cookie
	HTML           string

	Fail  map[string]bool
	Block map[string]bool

	// Results answers Evaluate calls whose script contains the key
	Results map[string]interface{}

	Screenshots    []string
	CookiesCleared int
	Scripts        []string

	onRequest  []func(models.NetworkEntry)
	onResponse []func(models.NetworkEntry)
	onFailed   []func(models.NetworkEntry)
	onConsole  []func(models.ConsoleEntry)
}

// NewFakePage returns a page with some storage and cookies populated
func NewFakePage() *FakePage {
	return &FakePage{
		PageURL:        "https://shop.example.test/cart",
		PageTitle:      "Cart - Shop",
		Viewport:       models.Viewport{Width: 1280, Height: 720},
		LocalStorage:   map[string]string{"cart": "[1,2]"},
		SessionStorage: map[string]string{"token": "abc"},
		CookieJar:      []models.Cookie{{Name: "session", Value: "s1", Domain: "shop.example.test"}},
		HTML:           "<html><body><button class=\"submit\">Save</button><button class=\"submit\">Cancel</button></body></html>",
		Fail:           map[string]bool{},
		Block:          map[string]bool{},
		Results:        map[string]interface{}{},
	}
}

func (p *FakePage) step(ctx context.Context, name string) error {
	p.mu.Lock()
	fail := p.Fail[name]
	block := p.Block[name]
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return ErrPageClosed
	}
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	if err := p.step(ctx, "url"); err != nil {
		return "", err
	}
	return p.PageURL, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	if err := p.step(ctx, "title"); err != nil {
		return "", err
	}
	return p.PageTitle, nil
}

func (p *FakePage) ViewportSize(ctx context.Context) (models.Viewport, error) {
	if err := p.step(ctx, "viewport"); err != nil {
		return models.Viewport{}, err
	}
	return p.Viewport, nil
}

// Evaluate understands the storage read/clear scripts used by capture and harness
func (p *FakePage) Evaluate(ctx context.Context, script string, out interface{}) error {
	p.mu.Lock()
	p.Scripts = append(p.Scripts, script)
	p.mu.Unlock()

	var source map[string]string
	switch {
	case strings.Contains(script, "localStorage.clear()") || strings.Contains(script, "sessionStorage.clear()"):
		if err := p.step(ctx, "clearStorage"); err != nil {
			return err
		}
		p.mu.Lock()
		p.LocalStorage = map[string]string{}
		p.SessionStorage = map[string]string{}
		p.mu.Unlock()
		return nil
	case strings.Contains(script, "window.localStorage"):
		if err := p.step(ctx, "localStorage"); err != nil {
			return err
		}
		source = p.LocalStorage
	case strings.Contains(script, "window.sessionStorage"):
		if err := p.step(ctx, "sessionStorage"); err != nil {
			return err
		}
		source = p.SessionStorage
	default:
		if err := p.step(ctx, "evaluate"); err != nil {
			return err
		}
		p.mu.Lock()
		var result interface{}
		for key, v := range p.Results {
			if strings.Contains(script, key) {
				result = v
			}
		}
		p.mu.Unlock()
		if out == nil || result == nil {
			return nil
		}
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}
	if out == nil || source == nil {
		return nil
	}
	data, err := json.Marshal(source)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *FakePage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if err := p.step(ctx, "screenshot"); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0644); err != nil {
		return err
	}
	p.mu.Lock()
	p.Screenshots = append(p.Screenshots, path)
	p.mu.Unlock()
	return nil
}

func (p *FakePage) Cookies(ctx context.Context) ([]models.Cookie, error) {
	if err := p.step(ctx, "cookies"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Cookie(nil), p.CookieJar...), nil
}

func (p *FakePage) ClearCookies(ctx context.Context) error {
	if err := p.step(ctx, "clearCookies"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CookieJar = nil
	p.CookiesCleared++
	return nil
}

func (p *FakePage) Content(ctx context.Context) (string, error) {
	if err := p.step(ctx, "dom"); err != nil {
		return "", err
	}
	return p.HTML, nil
}

func (p *FakePage) OnRequest(fn func(models.NetworkEntry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRequest = append(p.onRequest, fn)
}

func (p *FakePage) OnResponse(fn func(models.NetworkEntry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResponse = append(p.onResponse, fn)
}

func (p *FakePage) OnRequestFailed(fn func(models.NetworkEntry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFailed = append(p.onFailed, fn)
}

func (p *FakePage) OnConsoleMessage(fn func(models.ConsoleEntry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConsole = append(p.onConsole, fn)
}

// Subscribers returns how many handlers are registered across all event kinds
func (p *FakePage) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.onRequest) + len(p.onResponse) + len(p.onFailed) + len(p.onConsole)
}

// EmitRequest pushes a request event to subscribers
func (p *FakePage) EmitRequest(e models.NetworkEntry) {
	for _, fn := range p.onRequest {
		fn(e)
	}
}

// EmitResponse pushes a response event to subscribers
func (p *FakePage) EmitResponse(e models.NetworkEntry) {
	for _, fn := range p.onResponse {
		fn(e)
	}
}

// EmitFailure pushes a request-failed event to subscribers
func (p *FakePage) EmitFailure(e models.NetworkEntry) {
	for _, fn := range p.onFailed {
		fn(e)
	}
}

// EmitConsole pushes a console event to subscribers
func (p *FakePage) EmitConsole(e models.ConsoleEntry) {
	for _, fn := range p.onConsole {
		fn(e)
	}
}
