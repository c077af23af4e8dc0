package interfaces

import (
	"context"

	"github.com/ternarybob/failscope/internal/models"
)

// Page is the browser-automation collaborator as seen by the failure subsystem.
// Every method may fail; callers treat failures as best-effort omissions.
type Page interface {
	// URL returns the current page location
	URL(ctx context.Context) (string, error)

	// Title returns the document title
	Title(ctx context.Context) (string, error)

	// ViewportSize returns the page viewport in CSS pixels
	ViewportSize(ctx context.Context) (models.Viewport, error)

	// Evaluate runs script in the page and decodes its result into out (out may be nil)
	Evaluate(ctx context.Context, script string, out interface{}) error

	// Screenshot writes a PNG screenshot to path, raising on failure
	Screenshot(ctx context.Context, path string, fullPage bool) error

	// Cookies returns the cookies visible to the current page
	Cookies(ctx context.Context) ([]models.Cookie, error)

	// ClearCookies removes all browser cookies
	ClearCookies(ctx context.Context) error

	// Content returns the full DOM source of the document
	Content(ctx context.Context) (string, error)
}

// PageEvents are push-based subscriptions; the subsystem only listens
type PageEvents interface {
	OnRequest(fn func(models.NetworkEntry))
	OnResponse(fn func(models.NetworkEntry))
	OnRequestFailed(fn func(models.NetworkEntry))
	OnConsoleMessage(fn func(models.ConsoleEntry))
}
