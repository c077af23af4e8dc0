package models

import (
	"time"
)

// Viewport is the page viewport size in CSS pixels
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Cookie is a browser cookie visible to the page at capture time
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// ConsoleEntry is one console message or uncaught exception
type ConsoleEntry struct {
	Type      string    `json:"type"` // log, warning, error, exception...
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkEntry is one request and, once known, its response or failure
type NetworkEntry struct {
	RequestID   string        `json:"requestId,omitempty"`
	URL         string        `json:"url"`
	Method      string        `json:"method,omitempty"`
	Status      int           `json:"status,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"durationNs,omitempty"`
	FailureText string        `json:"failureText,omitempty"`
}

// Failed reports whether the request failed or returned an error status
func (n NetworkEntry) Failed() bool {
	return n.FailureText != "" || n.Status >= 400
}

// ContextSnapshot is the page state captured at the moment of a failure.
// Fields whose capture failed are left empty and listed in CaptureResult.Omitted.
type ContextSnapshot struct {
	URL            string            `json:"url,omitempty"`
	Title          string            `json:"title,omitempty"`
	Viewport       *Viewport         `json:"viewport,omitempty"`
	LocalStorage   map[string]string `json:"localStorage,omitempty"`
	SessionStorage map[string]string `json:"sessionStorage,omitempty"`
	Cookies        []Cookie          `json:"cookies,omitempty"`
	Console        []ConsoleEntry    `json:"console,omitempty"`
	Network        []NetworkEntry    `json:"network,omitempty"`
	ScreenshotPath string            `json:"screenshotPath,omitempty"`
	DOMSource      string            `json:"domSource,omitempty"`
	CapturedAt     time.Time         `json:"capturedAt"`
}

// Clone returns a deep copy of the snapshot
func (s ContextSnapshot) Clone() ContextSnapshot {
	out := s
	if s.Viewport != nil {
		v := *s.Viewport
		out.Viewport = &v
	}
	out.LocalStorage = cloneMap(s.LocalStorage)
	out.SessionStorage = cloneMap(s.SessionStorage)
	if s.Cookies != nil {
		out.Cookies = append([]Cookie(nil), s.Cookies...)
	}
	if s.Console != nil {
		out.Console = append([]ConsoleEntry(nil), s.Console...)
	}
	if s.Network != nil {
		out.Network = append([]NetworkEntry(nil), s.Network...)
	}
	return out
}

// CaptureResult is the outcome of a best-effort context capture.
// OK is false when at least one step was omitted; Snapshot is always usable.
type CaptureResult struct {
	OK       bool            `json:"ok"`
	Snapshot ContextSnapshot `json:"snapshot"`
	Omitted  []string        `json:"omitted,omitempty"`
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
