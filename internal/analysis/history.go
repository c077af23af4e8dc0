package analysis

import (
	"sort"
	"strings"

	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/models"
)

const maxExampleLength = 200

// AnalyzeHistory computes failure rate, trending categories and the
// flaky/consistent partition across runs. A test failing in at least
// FlakyThreshold of the runs is consistent; one failing in more than one run
// but below the threshold is flaky.
func (a *Analyzer) AnalyzeHistory(runs []models.RunDump) models.HistoricalAnalysis {
	result := models.HistoricalAnalysis{
		TotalRuns:          len(runs),
		TrendingPatterns:   []models.TrendingPattern{},
		FlakyTests:         []string{},
		ConsistentFailures: []string{},
		AnalyzedAt:         a.now(),
	}
	if len(runs) == 0 {
		return result
	}

	var rateSum float64
	failingRuns := make(map[string]int)
	var all []models.FailureRecord
	for _, run := range runs {
		rateSum += runFailureRate(run)
		for _, name := range run.FailingTests() {
			failingRuns[name]++
		}
		all = append(all, run.Failures...)
	}
	result.AverageFailureRate = rateSum / float64(len(runs))

	n := float64(len(runs))
	for name, count := range failingRuns {
		if float64(count)+ratioEpsilon >= a.config.FlakyThreshold*n {
			result.ConsistentFailures = append(result.ConsistentFailures, name)
		} else if count > 1 {
			result.FlakyTests = append(result.FlakyTests, name)
		}
	}
	sort.Strings(result.ConsistentFailures)
	sort.Strings(result.FlakyTests)

	result.TrendingPatterns = a.trending(all)
	return result
}

// runFailureRate falls back to "every recorded test failed" for dumps that
// carry failures but no outcome counts
func runFailureRate(run models.RunDump) float64 {
	if run.Summary.TotalTests > 0 {
		return run.Summary.FailureRate()
	}
	if len(run.Failures) > 0 {
		return 1
	}
	return 0
}

func (a *Analyzer) trending(records []models.FailureRecord) []models.TrendingPattern {
	patterns := []models.TrendingPattern{}
	if len(records) == 0 {
		return patterns
	}

	index := make(map[models.Category]int)
	for _, r := range records {
		i, ok := index[r.Category]
		if !ok {
			i = len(patterns)
			index[r.Category] = i
			patterns = append(patterns, models.TrendingPattern{Category: r.Category, Examples: []string{}})
		}
		p := &patterns[i]
		p.Count++
		if len(p.Examples) < a.config.ExampleMessages {
			example := exampleMessage(r.Message)
			if example != "" && !contains(p.Examples, example) {
				p.Examples = append(p.Examples, example)
			}
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Count > patterns[j].Count
	})
	if len(patterns) > a.config.TrendingLimit {
		patterns = patterns[:a.config.TrendingLimit]
	}
	for i := range patterns {
		patterns[i].Frequency = float64(patterns[i].Count) / float64(len(records))
	}
	return patterns
}

// exampleMessage keeps the first line of a message, truncated
func exampleMessage(message string) string {
	line := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	if len(line) > maxExampleLength {
		line = common.TruncateUTF8(line, maxExampleLength) + "..."
	}
	return line
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
