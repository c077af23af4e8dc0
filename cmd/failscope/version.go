package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/failscope/internal/common"
	"github.com/ternarybob/failscope/internal/report"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Failscope version %s\n", common.GetFullVersion())
		},
	}
}

// newHelpCmd replaces cobra's help: with no arguments it prints the banner,
// usage and the static debugging hints
func newHelpCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Show usage and debugging hints",
		Run: func(cmd *cobra.Command, args []string) {
			root := cmd.Root()
			if len(args) > 0 {
				if target, _, err := root.Find(args); err == nil && target != root {
					_ = target.Help()
					return
				}
			}

			if c.format == formatText || c.format == "" {
				common.PrintBanner(cmd.OutOrStdout(), c.config, common.GetVersion())
				root.SetOut(cmd.OutOrStdout())
				_ = root.Usage()
				fmt.Fprintln(cmd.OutOrStdout())
			}
			c.emit(cmd, report.HelpDocument(c.now()), report.RenderHints())
		},
	}
}
