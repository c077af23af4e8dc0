// Package store is the per-run collector of failure records. One Store is
// created per test run and shared by every worker; it keeps the ordered
// in-memory list, appends each record to a day log and maintains the bounded
// latest-records file.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/analysis"
	"github.com/ternarybob/failscope/internal/capture"
	"github.com/ternarybob/failscope/internal/classify"
	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/interfaces"
	"github.com/ternarybob/failscope/internal/models"
	"github.com/ternarybob/failscope/internal/report"
)

// ErrRecordNotFound is returned by UpdateRecovery for an unknown id
var ErrRecordNotFound = errors.New("failure record not found")

const (
	DefaultLatestLimit   = 100
	DefaultRecentEntries = 10
	DefaultDir           = "error-logs"
)

// AssertionInput is supplied by an assertion wrapper; it forces the
// ASSERTION_FAILURE category and becomes the record's assertion details
type AssertionInput struct {
	Operation string
	Expected  interface{}
	Actual    interface{}
}

// ExtraInfo is optional caller-supplied context for Record
type ExtraInfo struct {
	TestFile   string
	Project    string
	RetryCount int
	Stack      string
	Selector   string // attempted selector, used for strict-mode details
	Assertion  *AssertionInput
	Metadata   map[string]string
	Artifacts  []string // screenshot/video/trace references produced by the runner
	StepName   string   // names the screenshot file; defaults to the test name
}

// Options configures a Store
type Options struct {
	Dir           string
	LatestLimit   int
	RecentEntries int
	SessionID     string
	Capture       interfaces.CaptureOptions
	MaxElements   int
	Retries       int

	Capturer interfaces.ContextCapturer // nil disables context capture
	Archive  interfaces.RunArchive      // nil disables archiving on Finalize
	Analyzer *analysis.Analyzer

	Now func() time.Time
}

// OptionsFromConfig maps configuration onto store options. Capturer and
// Archive are left for the caller to wire.
func OptionsFromConfig(config *common.Config) Options {
	return Options{
		Dir:           config.Storage.Dir,
		LatestLimit:   config.Storage.LatestLimit,
		RecentEntries: config.Storage.RecentEntries,
		Capture: interfaces.CaptureOptions{
			Screenshot: config.Capture.Screenshots,
			FullPage:   config.Capture.FullPage,
			DOMSource:  config.Capture.DOMSource,
		},
		MaxElements: config.Capture.MaxElements,
		Retries:     config.Page.Retries,
		Analyzer:    analysis.NewAnalyzer(analysis.ConfigFromCommon(config.Analysis)),
	}
}

type testKey struct {
	project string
	name    string
}

// Store collects the failures of one run. All methods are safe for
// concurrent use.
type Store struct {
	logger    arbor.ILogger
	opts      Options
	startedAt time.Time

	mu       sync.Mutex
	seq      uint64
	records  []models.FailureRecord
	latest   []models.FailureRecord
	outcomes map[testKey]models.TestOutcome
}

// New creates a store and seeds the latest window from an existing
// latest-handler-errors.json so the bound holds across processes
func New(logger arbor.ILogger, opts Options) *Store {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = DefaultLatestLimit
	}
	if opts.RecentEntries < 0 {
		opts.RecentEntries = DefaultRecentEntries
	}
	if opts.SessionID == "" {
		opts.SessionID = common.NewSessionID()
	}
	if opts.MaxElements <= 0 {
		opts.MaxElements = classify.DefaultMaxElements
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.NewAnalyzer(analysis.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		logger:    logger.WithCorrelationId(opts.SessionID),
		opts:      opts,
		startedAt: opts.Now(),
		outcomes:  make(map[testKey]models.TestOutcome),
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		s.logger.Error().Err(err).Str("dir", opts.Dir).Msg("Failed to create storage directory, failures will only be kept in memory")
	}

	latest, err := ReadLatestRecords(opts.Dir)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring unreadable latest-records file")
	}
	if len(latest) > opts.LatestLimit {
		latest = latest[len(latest)-opts.LatestLimit:]
	}
	s.latest = latest

	s.logger.Debug().
		Str("dir", opts.Dir).
		Int("latest_seeded", len(latest)).
		Msg("Failure store initialized")
	return s
}

// SessionID identifies this run in every record
func (s *Store) SessionID() string {
	return s.opts.SessionID
}

// Record classifies err, captures page context and appends the resulting
// record. It never fails: persistence problems are logged and the in-memory
// append still happens. Callers still own err and must fail the test with it.
func (s *Store) Record(ctx context.Context, err error, page interfaces.Page, testName string, extra ExtraInfo) models.FailureRecord {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}

	category := classify.Classify(message)
	if extra.Assertion != nil {
		category = models.CategoryAssertionFailure
	}

	fc := models.FailureContext{
		TestName:   testName,
		TestFile:   extra.TestFile,
		Project:    extra.Project,
		RetryCount: extra.RetryCount,
		Metadata:   copyMap(extra.Metadata),
	}
	artifacts := append([]string(nil), extra.Artifacts...)

	var snapshot *models.ContextSnapshot
	if s.opts.Capturer != nil && page != nil {
		opts := s.opts.Capture
		opts.StepName = extra.StepName
		if category == models.CategoryStrictModeViolation {
			opts.DOMSource = true
		}
		result := s.opts.Capturer.Capture(ctx, page, testName, opts)
		captured := result.Snapshot
		snapshot = &captured
		fc.URL = captured.URL
		fc.Omitted = result.Omitted
		if captured.ScreenshotPath != "" {
			artifacts = append(artifacts, captured.ScreenshotPath)
		}
	}

	switch {
	case extra.Assertion != nil:
		fc.Details = models.NewAssertionCategoryDetails(
			classify.NewAssertionDetails(extra.Assertion.Operation, extra.Assertion.Expected, extra.Assertion.Actual))
	case category == models.CategoryStrictModeViolation:
		details := classify.ExtractStrictMode(message, extra.Selector, s.opts.MaxElements)
		if snapshot != nil {
			details = capture.EnrichStrictMode(details, snapshot.DOMSource, s.opts.MaxElements)
		}
		if details != nil {
			fc.Details = models.NewStrictModeDetails(details)
		}
	}
	if snapshot != nil && !s.opts.Capture.DOMSource {
		snapshot.DOMSource = ""
	}
	fc.Snapshot = snapshot

	record := models.FailureRecord{
		SessionID: s.opts.SessionID,
		Category:  category,
		Message:   message,
		Stack:     extra.Stack,
		Context:   fc,
		Artifacts: artifacts,
	}

	s.mu.Lock()
	s.seq++
	record.ID = common.NewFailureID(s.seq)
	record.Timestamp = s.opts.Now()
	s.records = append(s.records, record)
	s.pushLatestLocked(record)
	s.persistLocked(record)
	s.mu.Unlock()

	s.logger.Info().
		Str("id", record.ID).
		Str("category", string(record.Category)).
		Str("test", testName).
		Int("omitted", len(fc.Omitted)).
		Msg("Failure recorded")

	return record.Clone()
}

// pushLatestLocked appends to the latest window, evicting oldest first
func (s *Store) pushLatestLocked(record models.FailureRecord) {
	s.latest = append(s.latest, record)
	if excess := len(s.latest) - s.opts.LatestLimit; excess > 0 {
		s.latest = append(s.latest[:0], s.latest[excess:]...)
	}
}

// persistLocked appends the day-log line and rewrites the latest file.
// Must hold s.mu so concurrent writes never interleave.
func (s *Store) persistLocked(record models.FailureRecord) {
	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		s.logger.Error().Err(err).Str("id", record.ID).Msg("Failed to persist failure record")
		return
	}
	if err := appendLine(DayLogPath(s.opts.Dir, record.Timestamp), record); err != nil {
		s.logger.Error().Err(err).Str("id", record.ID).Msg("Failed to append failure to day log")
	}
	s.writeLatestLocked()
}

func (s *Store) writeLatestLocked() {
	if err := writeJSON(filepath.Join(s.opts.Dir, LatestHandlerFile), s.latest); err != nil {
		s.logger.Error().Err(err).Msg("Failed to rewrite latest failures file")
	}
}

// Query returns a copy of this run's records in record order
func (s *Store) Query() []models.FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FailureRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Clear empties the in-memory buffer. Files on disk are untouched.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.records)
	s.records = nil
	s.mu.Unlock()
	s.logger.Debug().Int("cleared", n).Msg("Failure buffer cleared")
}

// Report renders counts by category, the most recent entries and suggestions
func (s *Store) Report() string {
	records := s.Query()
	return report.RenderHandlerReport(records, s.opts.RecentEntries, SuggestionsFor(records))
}

// DebuggingSuggestions returns every suggestion whose category is present
func (s *Store) DebuggingSuggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := SuggestionsFor(s.records)
	if out == nil {
		out = []string{}
	}
	return out
}

// UpdateRecovery attaches a recovery outcome to a record; nothing else on the
// record changes. The latest file is rewritten when the record is in it.
func (s *Store) UpdateRecovery(id string, recovery models.Recovery) (models.FailureRecord, error) {
	recovery.Strategies = append([]string(nil), recovery.Strategies...)

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *models.FailureRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].ID == id {
			s.records[i].Recovery = recovery
			updated = &s.records[i]
			break
		}
	}
	inLatest := false
	for i := len(s.latest) - 1; i >= 0; i-- {
		if s.latest[i].ID == id {
			s.latest[i].Recovery = recovery
			if updated == nil {
				updated = &s.latest[i]
			}
			inLatest = true
			break
		}
	}
	if updated == nil {
		return models.FailureRecord{}, ErrRecordNotFound
	}
	if inLatest {
		s.writeLatestLocked()
	}

	s.logger.Debug().
		Str("id", id).
		Bool("successful", recovery.Successful).
		Int("attempts", recovery.Attempts).
		Msg("Recovery outcome attached")
	return updated.Clone(), nil
}

// MarkOutcome records a test's final status for the run summary. A later
// call for the same test and project replaces the earlier one (retries).
func (s *Store) MarkOutcome(testName, project string, outcome models.TestOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[testKey{project: project, name: testName}] = outcome
}

// Summary aggregates outcomes so far. Failing tests that were recorded but
// never marked count as failed.
func (s *Store) Summary() models.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Store) summaryLocked() models.RunSummary {
	summary := models.RunSummary{
		SessionID: s.opts.SessionID,
		StartedAt: s.startedAt,
		EndedAt:   s.opts.Now(),
		Retries:   s.opts.Retries,
	}

	outcomes := make(map[testKey]models.TestOutcome, len(s.outcomes))
	for k, v := range s.outcomes {
		outcomes[k] = v
	}
	for _, r := range s.records {
		k := testKey{project: r.Context.Project, name: r.Context.TestName}
		if _, ok := outcomes[k]; !ok {
			outcomes[k] = models.OutcomeFailed
		}
	}

	projects := make(map[string]bool)
	for k, outcome := range outcomes {
		summary.TotalTests++
		switch outcome {
		case models.OutcomePassed:
			summary.Passed++
		case models.OutcomeFailed:
			summary.Failed++
		case models.OutcomeSkipped:
			summary.Skipped++
		}
		if k.project != "" {
			projects[k.project] = true
		}
	}
	for p := range projects {
		summary.Projects = append(summary.Projects, p)
	}
	sort.Strings(summary.Projects)
	return summary
}

// Finalize writes the run dump (timestamped and latest copies), the session
// summary and, when configured, archives the run. Write failures are logged.
func (s *Store) Finalize(ctx context.Context) models.RunDump {
	s.mu.Lock()
	dump := models.RunDump{Summary: s.summaryLocked()}
	dump.Failures = make([]models.FailureRecord, len(s.records))
	for i, r := range s.records {
		dump.Failures[i] = r.Clone()
	}
	s.mu.Unlock()

	insights := s.opts.Analyzer.Analyze(dump.Failures, analysis.WithProjects(dump.Summary.Projects))
	suggestions := SuggestionsFor(dump.Failures)
	text := report.RenderRunText(dump)

	jsonPath, textPath := RunDumpPaths(s.opts.Dir, dump.Summary.EndedAt)
	writes := []struct {
		path string
		fn   func(string) error
	}{
		{jsonPath, func(p string) error { return writeJSON(p, dump) }},
		{textPath, func(p string) error { return writeFile(p, []byte(text)) }},
		{filepath.Join(s.opts.Dir, LatestRunJSONFile), func(p string) error { return writeJSON(p, dump) }},
		{filepath.Join(s.opts.Dir, LatestRunTextFile), func(p string) error { return writeFile(p, []byte(text)) }},
		{SessionSummaryPath(s.opts.Dir, s.opts.SessionID), func(p string) error {
			return writeFile(p, []byte(report.RenderSessionSummary(dump, insights, suggestions)))
		}},
	}
	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		s.logger.Error().Err(err).Str("dir", s.opts.Dir).Msg("Failed to create storage directory for run dump")
	} else {
		for _, w := range writes {
			if err := w.fn(w.path); err != nil {
				s.logger.Error().Err(err).Str("path", w.path).Msg("Failed to write run output")
			}
		}
	}

	if s.opts.Archive != nil {
		if err := s.opts.Archive.SaveRun(ctx, dump); err != nil {
			s.logger.Error().Err(err).Msg("Failed to archive run")
		}
	}

	s.logger.Info().
		Int("total", dump.Summary.TotalTests).
		Int("failed", dump.Summary.Failed).
		Int("records", len(dump.Failures)).
		Str("dump", jsonPath).
		Msg("Run finalized")
	return dump
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
