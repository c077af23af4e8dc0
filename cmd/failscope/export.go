package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/failscope/internal/analysis"
	"github.com/ternarybob/failscope/internal/report"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		as  string
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest run report as Markdown, HTML or PDF",
		Long: `Render the latest run, its insights and failure details to a file.
The default output is <dir>/latest-report.<format>; use --out - for stdout.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			format := strings.ToLower(as)
			dump, ok := c.latestRun()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), report.NoDataMessage(c.config.Storage.Dir))
				return
			}
			analyzer := analysis.NewAnalyzer(analysis.ConfigFromCommon(c.config.Analysis))
			insights := analyzer.Analyze(dump.Failures, analysis.WithProjects(dump.Summary.Projects))
			doc := report.RunDocument(dump, insights, c.now())

			data, err := report.NewExporter(c.logger).Export(doc, format)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "export failed: %v\n", err)
				return
			}

			if out == "-" {
				cmd.OutOrStdout().Write(data)
				return
			}
			path := out
			if path == "" {
				path = filepath.Join(c.config.Storage.Dir, "latest-report."+format)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "export failed: %v\n", err)
				return
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "export failed: %v\n", err)
				return
			}
			c.logger.Info().Str("path", path).Str("format", format).Int("bytes", len(data)).Msg("Report exported")
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
		},
	}
	cmd.Flags().StringVar(&as, "as", report.FormatMarkdown, "Export format: md, html or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default <dir>/latest-report.<format>, - for stdout)")
	return cmd
}
