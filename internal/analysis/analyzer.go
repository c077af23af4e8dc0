// Package analysis turns failure records into ranked insights and turns many
// past runs into trend and flakiness statistics. It never mutates its input.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/models"
)

// Insight categories that are not taxonomy values
const (
	InsightFlaky       = "Flaky Tests (Retries)"
	InsightEnvironment = "Environment-Specific Failures"
)

// ratioEpsilon absorbs float error at threshold boundaries (8/10 vs 0.8)
const ratioEpsilon = 1e-9

// Config holds analyzer thresholds
type Config struct {
	FlakyThreshold       float64
	TimeoutHighRatio     float64
	SelectorHighRatio    float64
	EnvironmentSkewRatio float64
	MinOccurrences       int
	TrendingLimit        int
	ExampleMessages      int
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		FlakyThreshold:       0.8,
		TimeoutHighRatio:     0.3,
		SelectorHighRatio:    0.4,
		EnvironmentSkewRatio: 0.8,
		MinOccurrences:       1,
		TrendingLimit:        10,
		ExampleMessages:      3,
	}
}

// ConfigFromCommon maps the [analysis] config section
func ConfigFromCommon(c common.AnalysisConfig) Config {
	return Config{
		FlakyThreshold:       c.FlakyThreshold,
		TimeoutHighRatio:     c.TimeoutHighRatio,
		SelectorHighRatio:    c.SelectorHighRatio,
		EnvironmentSkewRatio: c.EnvironmentSkewRatio,
		MinOccurrences:       c.MinOccurrences,
		TrendingLimit:        c.TrendingLimit,
		ExampleMessages:      c.ExampleMessages,
	}
}

// Analyzer produces insights and historical analysis
type Analyzer struct {
	config Config
	now    func() time.Time
}

// NewAnalyzer creates an analyzer; zero or negative config values fall back
// to defaults
func NewAnalyzer(config Config) *Analyzer {
	def := DefaultConfig()
	if config.FlakyThreshold <= 0 {
		config.FlakyThreshold = def.FlakyThreshold
	}
	if config.TimeoutHighRatio <= 0 {
		config.TimeoutHighRatio = def.TimeoutHighRatio
	}
	if config.SelectorHighRatio <= 0 {
		config.SelectorHighRatio = def.SelectorHighRatio
	}
	if config.EnvironmentSkewRatio <= 0 {
		config.EnvironmentSkewRatio = def.EnvironmentSkewRatio
	}
	if config.MinOccurrences <= 0 {
		config.MinOccurrences = def.MinOccurrences
	}
	if config.TrendingLimit <= 0 {
		config.TrendingLimit = def.TrendingLimit
	}
	if config.ExampleMessages <= 0 {
		config.ExampleMessages = def.ExampleMessages
	}
	return &Analyzer{config: config, now: time.Now}
}

type analyzeOptions struct {
	projects []string
}

// Option adjusts a single Analyze call
type Option func(*analyzeOptions)

// WithProjects names every project (browser/environment) that ran, including
// ones with no failures, for the environment-skew check
func WithProjects(projects []string) Option {
	return func(o *analyzeOptions) {
		o.projects = append(o.projects, projects...)
	}
}

// Analyze partitions records and returns insights sorted by priority.
// Equal priorities keep category-processing order.
func (a *Analyzer) Analyze(records []models.FailureRecord, opts ...Option) []models.Insight {
	options := &analyzeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	total := len(records)
	if total == 0 {
		return []models.Insight{}
	}

	byCategory := make(map[models.Category][]models.FailureRecord)
	var retried []models.FailureRecord
	for _, r := range records {
		byCategory[r.Category] = append(byCategory[r.Category], r)
		if r.Context.RetryCount > 0 {
			retried = append(retried, r)
		}
	}

	timeouts := len(byCategory[models.CategoryNavigationTimeout]) + len(byCategory[models.CategoryNetworkTimeout])

	var insights []models.Insight
	for _, tpl := range categoryTemplates {
		group := byCategory[tpl.category]
		if len(group) < a.config.MinOccurrences || len(group) == 0 {
			continue
		}
		insights = append(insights, models.Insight{
			Category:        tpl.title,
			Description:     fmt.Sprintf(tpl.description, len(group), percent(len(group), total)),
			AffectedTests:   affectedTests(group),
			Recommendations: append([]string(nil), tpl.recommendations...),
			Priority:        a.priorityFor(tpl.category, len(group), timeouts, total),
			Count:           len(group),
		})
	}

	if len(retried) >= a.config.MinOccurrences && len(retried) > 0 {
		insights = append(insights, models.Insight{
			Category:        InsightFlaky,
			Description:     fmt.Sprintf("%d failures happened on a retry attempt; these tests pass and fail inconsistently", len(retried)),
			AffectedTests:   affectedTests(retried),
			Recommendations: append([]string(nil), flakyRecommendations...),
			Priority:        models.PriorityMedium,
			Count:           len(retried),
		})
	}

	if insight, ok := a.environmentSkew(records, options.projects); ok {
		insights = append(insights, insight)
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Priority.Rank() > insights[j].Priority.Rank()
	})
	return insights
}

func (a *Analyzer) priorityFor(category models.Category, count, timeouts, total int) models.Priority {
	switch category {
	case models.CategoryAuthenticationFailure:
		return models.PriorityHigh
	case models.CategoryNavigationTimeout, models.CategoryNetworkTimeout:
		if exceeds(timeouts, total, a.config.TimeoutHighRatio) {
			return models.PriorityHigh
		}
		return models.PriorityMedium
	case models.CategorySelectorNotFound:
		if exceeds(count, total, a.config.SelectorHighRatio) {
			return models.PriorityHigh
		}
		return models.PriorityMedium
	case models.CategoryUnknown:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// environmentSkew fires when more than one project ran and a single project
// holds more than EnvironmentSkewRatio of the failures
func (a *Analyzer) environmentSkew(records []models.FailureRecord, projects []string) (models.Insight, bool) {
	ran := make(map[string]bool)
	for _, p := range projects {
		if p != "" {
			ran[p] = true
		}
	}
	byProject := make(map[string][]models.FailureRecord)
	var order []string
	for _, r := range records {
		p := r.Context.Project
		if p == "" {
			continue
		}
		ran[p] = true
		if _, ok := byProject[p]; !ok {
			order = append(order, p)
		}
		byProject[p] = append(byProject[p], r)
	}
	if len(ran) < 2 {
		return models.Insight{}, false
	}

	top := ""
	for _, p := range order {
		if top == "" || len(byProject[p]) > len(byProject[top]) {
			top = p
		}
	}
	if top == "" {
		return models.Insight{}, false
	}
	count := len(byProject[top])
	if float64(count) <= a.config.EnvironmentSkewRatio*float64(len(records))+ratioEpsilon {
		return models.Insight{}, false
	}

	return models.Insight{
		Category:        InsightEnvironment,
		Description:     fmt.Sprintf("%d of %d failures (%.0f%%) occurred only in project %q", count, len(records), percent(count, len(records)), top),
		AffectedTests:   affectedTests(byProject[top]),
		Recommendations: append([]string(nil), environmentRecommendations...),
		Priority:        models.PriorityMedium,
		Count:           count,
	}, true
}

func exceeds(count, total int, ratio float64) bool {
	if total == 0 {
		return false
	}
	return float64(count) > ratio*float64(total)+ratioEpsilon
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(count) / float64(total)
}

// affectedTests returns distinct test names in first-seen order
func affectedTests(records []models.FailureRecord) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, r := range records {
		name := r.Context.TestName
		if name == "" {
			name = "(unnamed test)"
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
