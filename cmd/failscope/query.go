package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ternarybob/failscope/internal/analysis"
	"github.com/ternarybob/failscope/internal/archive"
	"github.com/ternarybob/failscope/internal/models"
	"github.com/ternarybob/failscope/internal/report"
	"github.com/ternarybob/failscope/internal/store"
)

func newLatestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show insights for the most recent run",
		Long:  `Analyze latest-errors.json and print the prioritized insights for that run.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			dump, ok := c.latestRun()
			if !ok {
				c.emitNoData(cmd, report.KindRun)
				return
			}
			analyzer := analysis.NewAnalyzer(analysis.ConfigFromCommon(c.config.Analysis))
			insights := analyzer.Analyze(dump.Failures, analysis.WithProjects(dump.Summary.Projects))

			text := report.RenderInsights(insights)
			if len(dump.Failures) == 0 {
				text = report.NoFailuresMessage
			}
			c.emit(cmd, report.RunDocument(dump, insights, c.now()), text)
		},
	}
}

func newHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show flaky tests, consistent failures and trends across runs",
		Long: `Analyze the most recent run dumps (--runs, default from config) and report
flaky tests, consistent failures and trending failure categories. When the run
archive is enabled it is read first; run dump files are used otherwise.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runs := c.historyRuns(cmd.Context())
			analyzer := analysis.NewAnalyzer(analysis.ConfigFromCommon(c.config.Analysis))
			h := analyzer.AnalyzeHistory(runs)
			c.emit(cmd, report.HistoryDocument(h, c.now()), report.RenderHistory(h))
		},
	}
}

func newHandlerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "handler",
		Short: "Show the failure store's own report and suggestions",
		Long:  `Render the bounded latest-failures window kept by the failure store, with debugging suggestions.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			records, ok := c.latestRecords()
			if !ok {
				c.emitNoData(cmd, report.KindHandler)
				return
			}
			suggestions := store.SuggestionsFor(records)
			text := report.RenderHandlerReport(records, c.config.Storage.RecentEntries, suggestions)
			c.emit(cmd, report.HandlerDocument(records, suggestions, c.now()), text)
		},
	}
}

func newStrictCmd(c *cli) *cobra.Command {
	return newCategoryCmd(c, "strict", "Group strict-mode violations by selector", models.CategoryStrictModeViolation)
}

func newAssertionsCmd(c *cli) *cobra.Command {
	return newCategoryCmd(c, "assertions", "Group assertion failures by operation", models.CategoryAssertionFailure)
}

func newCategoryCmd(c *cli, use, short string, category models.Category) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			records, ok := c.latestRecords()
			if !ok {
				c.emitNoData(cmd, report.KindCategory)
				return
			}
			c.emit(cmd, report.CategoryDocument(records, category, c.now()), report.RenderCategoryGroup(records, category))
		},
	}
}

// latestRun reads latest-errors.json; a missing or unreadable file is an empty run
func (c *cli) latestRun() (models.RunDump, bool) {
	dump, ok, err := store.LoadLatestRun(c.config.Storage.Dir)
	if err != nil {
		c.logger.Warn().Err(err).Str("dir", c.config.Storage.Dir).Msg("Failed to read latest run")
		return models.RunDump{}, false
	}
	return dump, ok
}

// latestRecords prefers the store's latest window and falls back to the latest
// run dump; ok is false when neither file exists
func (c *cli) latestRecords() ([]models.FailureRecord, bool) {
	records, found, err := store.LoadLatestRecords(c.config.Storage.Dir)
	if err != nil {
		c.logger.Warn().Err(err).Str("dir", c.config.Storage.Dir).Msg("Failed to read latest failures")
	}
	if len(records) > 0 {
		return records, true
	}
	dump, ok := c.latestRun()
	return dump.Failures, found || ok
}

// emitNoData reports that nothing has been recorded in the storage directory
func (c *cli) emitNoData(cmd *cobra.Command, kind string) {
	c.emit(cmd, report.NoDataDocument(kind, c.config.Storage.Dir, c.now()), report.NoDataMessage(c.config.Storage.Dir))
}

func (c *cli) historyRuns(ctx context.Context) []models.RunDump {
	if ctx == nil {
		ctx = context.Background()
	}
	limit := c.config.Analysis.HistoryRuns

	if c.config.Archive.Enabled {
		a, err := archive.Open(c.logger, c.config.ArchivePath(), false)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Run archive unavailable, reading run dumps")
		} else {
			defer a.Close()
			runs, err := a.RecentRuns(ctx, limit)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Failed to read run archive, reading run dumps")
			} else if len(runs) > 0 {
				return runs
			}
		}
	}

	runs, err := store.LoadRunDumps(c.config.Storage.Dir, limit)
	if err != nil {
		c.logger.Warn().Err(err).Str("dir", c.config.Storage.Dir).Msg("Failed to list run dumps")
		return nil
	}
	return runs
}
