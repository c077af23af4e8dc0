package capture

import (
	"sync"
	"time"

	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
)

// Default buffer sizes for recent console and network activity
const (
	DefaultConsoleLimit = 200
	DefaultNetworkLimit = 200
)

// ring is a fixed-capacity FIFO; the oldest entry is evicted when full
type ring[T any] struct {
	entries []T
	head    int
	full    bool
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{entries: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.entries[r.head] = v
	r.head = (r.head + 1) % len(r.entries)
	if r.head == 0 {
		r.full = true
	}
}

// snapshot returns entries oldest first
func (r *ring[T]) snapshot() []T {
	if !r.full {
		out := make([]T, r.head)
		copy(out, r.entries[:r.head])
		return out
	}
	out := make([]T, 0, len(r.entries))
	out = append(out, r.entries[r.head:]...)
	out = append(out, r.entries[:r.head]...)
	return out
}

// EventLog passively records recent console messages and network traffic
// pushed by a page. Safe for concurrent use: browser events arrive on the
// browser's goroutine while captures read from test workers.
type EventLog struct {
	mu      sync.Mutex
	console *ring[models.ConsoleEntry]
	network *ring[*models.NetworkEntry]
	pending map[string]*models.NetworkEntry
	now     func() time.Time

	attached bool
	paused   bool
}

// NewEventLog creates an event log keeping the most recent entries of each kind
func NewEventLog(consoleLimit, networkLimit int) *EventLog {
	if consoleLimit <= 0 {
		consoleLimit = DefaultConsoleLimit
	}
	if networkLimit <= 0 {
		networkLimit = DefaultNetworkLimit
	}
	return &EventLog{
		console: newRing[models.ConsoleEntry](consoleLimit),
		network: newRing[*models.NetworkEntry](networkLimit),
		pending: make(map[string]*models.NetworkEntry),
		now:     time.Now,
	}
}

// Attach subscribes the log to a page's push events. Pages offer no way to
// unsubscribe, so a log attaches at most once.
func (l *EventLog) Attach(events interfaces.PageEvents) {
	l.mu.Lock()
	if l.attached || events == nil {
		l.mu.Unlock()
		return
	}
	l.attached = true
	l.mu.Unlock()

	events.OnRequest(l.AddRequest)
	events.OnResponse(l.AddResponse)
	events.OnRequestFailed(l.AddFailure)
	events.OnConsoleMessage(l.AddConsole)
}

// Pause drops buffered entries and ignores events until Resume
func (l *EventLog) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = true
	l.console = newRing[models.ConsoleEntry](len(l.console.entries))
	l.network = newRing[*models.NetworkEntry](len(l.network.entries))
	l.pending = make(map[string]*models.NetworkEntry)
}

// Resume starts recording events again
func (l *EventLog) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
}

// AddConsole records a console message
func (l *EventLog) AddConsole(entry models.ConsoleEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	l.console.push(entry)
}

// AddRequest records the start of a request
func (l *EventLog) AddRequest(entry models.NetworkEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = l.now()
	}
	e := entry
	l.network.push(&e)
	if e.RequestID != "" {
		l.pending[e.RequestID] = &e
		l.trimPendingLocked()
	}
}

// AddResponse completes a pending request with its status and timing.
// A response with no known request is recorded on its own.
func (l *EventLog) AddResponse(entry models.NetworkEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return
	}
	if req, ok := l.pending[entry.RequestID]; ok && entry.RequestID != "" {
		req.Status = entry.Status
		if entry.URL != "" {
			req.URL = entry.URL
		}
		req.Duration = l.elapsed(req.StartedAt, entry)
		delete(l.pending, entry.RequestID)
		return
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = l.now()
	}
	e := entry
	l.network.push(&e)
}

// AddFailure marks a pending request as failed
func (l *EventLog) AddFailure(entry models.NetworkEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return
	}
	if req, ok := l.pending[entry.RequestID]; ok && entry.RequestID != "" {
		req.FailureText = entry.FailureText
		req.Duration = l.elapsed(req.StartedAt, entry)
		delete(l.pending, entry.RequestID)
		return
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = l.now()
	}
	e := entry
	l.network.push(&e)
}

// Console returns recent console entries, oldest first
func (l *EventLog) Console() []models.ConsoleEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.console.snapshot()
}

// Network returns copies of recent network entries, oldest first
func (l *EventLog) Network() []models.NetworkEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	ptrs := l.network.snapshot()
	out := make([]models.NetworkEntry, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (l *EventLog) elapsed(start time.Time, entry models.NetworkEntry) time.Duration {
	if entry.Duration > 0 {
		return entry.Duration
	}
	end := entry.StartedAt
	if end.IsZero() {
		end = l.now()
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// trimPendingLocked drops pending requests that were already evicted from the ring
func (l *EventLog) trimPendingLocked() {
	if len(l.pending) <= len(l.network.entries) {
		return
	}
	live := make(map[*models.NetworkEntry]bool, len(l.network.entries))
	for _, p := range l.network.snapshot() {
		live[p] = true
	}
	for id, p := range l.pending {
		if !live[p] {
			delete(l.pending, id)
		}
	}
}
