package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/failscope/internal/models"
)

// Document is the machine-readable report; it mirrors the text renderers
type Document struct {
	Kind        string                     `json:"kind"`
	GeneratedAt time.Time                  `json:"generatedAt"`
	Message     string                     `json:"message,omitempty"` // set when there is nothing to report
	Summary     *models.RunSummary         `json:"summary,omitempty"`
	Counts      []CategoryCount            `json:"counts,omitempty"`
	Insights    []models.Insight           `json:"insights,omitempty"`
	History     *models.HistoricalAnalysis `json:"history,omitempty"`
	Groups      []Group                    `json:"groups,omitempty"`
	Failures    []models.FailureRecord     `json:"failures,omitempty"`
	Suggestions []string                   `json:"suggestions,omitempty"`
	Hints       []string                   `json:"hints,omitempty"`
}

// Group is one keyed bucket of a category filter
type Group struct {
	Key      string                 `json:"key"`
	Count    int                    `json:"count"`
	Failures []models.FailureRecord `json:"failures"`
}

// Document kinds
const (
	KindRun      = "run"
	KindHistory  = "history"
	KindHandler  = "handler"
	KindCategory = "category"
	KindHelp     = "help"
)

// RunDocument describes one run with its insights
func RunDocument(dump models.RunDump, insights []models.Insight, at time.Time) Document {
	summary := dump.Summary
	doc := Document{
		Kind:        KindRun,
		GeneratedAt: at,
		Summary:     &summary,
		Counts:      CountByCategory(dump.Failures),
		Insights:    insights,
		Failures:    dump.Failures,
	}
	if len(dump.Failures) == 0 {
		doc.Message = NoFailuresMessage
	}
	return doc
}

// HistoryDocument wraps a historical analysis
func HistoryDocument(h models.HistoricalAnalysis, at time.Time) Document {
	doc := Document{Kind: KindHistory, GeneratedAt: at, History: &h}
	if h.TotalRuns == 0 {
		doc.Message = NoRunsMessage
	}
	return doc
}

// HandlerDocument mirrors RenderHandlerReport
func HandlerDocument(records []models.FailureRecord, suggestions []string, at time.Time) Document {
	doc := Document{
		Kind:        KindHandler,
		GeneratedAt: at,
		Counts:      CountByCategory(records),
		Failures:    records,
		Suggestions: suggestions,
	}
	if len(records) == 0 {
		doc.Message = NoFailuresMessage
	}
	return doc
}

// CategoryDocument mirrors RenderCategoryGroup
func CategoryDocument(records []models.FailureRecord, category models.Category, at time.Time) Document {
	doc := Document{Kind: KindCategory, GeneratedAt: at}
	groups, order := groupRecords(records, category)
	for _, key := range order {
		doc.Groups = append(doc.Groups, Group{Key: key, Count: len(groups[key]), Failures: groups[key]})
	}
	if len(order) == 0 {
		doc.Message = fmt.Sprintf("No %s records found.", strings.ToLower(category.Label()))
	}
	return doc
}

// NoDataDocument is the machine-readable form of NoDataMessage
func NoDataDocument(kind, dir string, at time.Time) Document {
	return Document{Kind: kind, GeneratedAt: at, Message: NoDataMessage(dir)}
}

// HelpDocument lists the static debugging hints
func HelpDocument(at time.Time) Document {
	return Document{Kind: KindHelp, GeneratedAt: at, Hints: DebugHints()}
}

// RenderJSON encodes the document as indented JSON
func RenderJSON(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report as JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderYAML encodes the document as YAML with the same keys as the JSON form.
// The JSON encoding is parsed into a yaml.Node so field order and camelCase
// keys survive.
func RenderYAML(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert report to YAML: %w", err)
	}
	resetStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to encode report as YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resetStyle drops the flow/quoted styles inherited from JSON input
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}
