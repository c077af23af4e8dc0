package interfaces

import (
	"context"

	"github.com/ternarybob/failscope/internal/models"
)

// CaptureOptions selects the optional, more expensive capture steps
type CaptureOptions struct {
	Screenshot bool
	FullPage   bool
	DOMSource  bool
	StepName   string // used in the deterministic screenshot path
}

// ContextCapturer produces a best-effort snapshot of a page at the moment of failure
type ContextCapturer interface {
	// Capture never returns an error; failed steps are listed in CaptureResult.Omitted
	Capture(ctx context.Context, page Page, testName string, opts CaptureOptions) models.CaptureResult
}
