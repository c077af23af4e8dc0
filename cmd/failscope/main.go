package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/failscope/internal/common"
)

const defaultConfigFile = "failscope.toml"

// cli holds flag values and the configuration resolved from them
type cli struct {
	configFiles []string
	dir         string
	format      string
	logLevel    string
	runs        int

	config *common.Config
	logger arbor.ILogger
	now    func() time.Time
}

func main() {
	root := newRootCmd(&cli{now: time.Now})
	if err := root.Execute(); err != nil {
		// informational tool: report and still exit 0
		fmt.Fprintf(os.Stderr, "failscope: %v\n", err)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "failscope",
		Short: "Inspect recorded end-to-end test failures",
		Long: `Failscope reads the failure logs written during a browser test run and
renders insights for the latest run, cross-run history, the store's own
report and filtered views of strict-mode and assertion failures.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.setup()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringArrayVarP(&c.configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.StringVarP(&c.dir, "dir", "d", "", "Failure log directory (overrides config)")
	flags.StringVarP(&c.format, "format", "f", formatText, "Output format: text, json or yaml")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (overrides config)")
	flags.IntVar(&c.runs, "runs", 0, "Runs to analyze for history (overrides config)")

	root.AddCommand(
		newLatestCmd(c),
		newHistoryCmd(c),
		newHandlerCmd(c),
		newStrictCmd(c),
		newAssertionsCmd(c),
		newExportCmd(c),
		newVersionCmd(),
	)
	root.SetHelpCommand(newHelpCmd(c))
	return root
}

// cliDefaults logs at warn unless a config file, FAILSCOPE_LOG_LEVEL or
// --log-level says otherwise, keeping stdout clean for json/yaml consumers
func cliDefaults() *common.Config {
	config := common.NewDefaultConfig()
	config.Logging.Level = "warn"
	return config
}

// setup resolves configuration: defaults -> files -> env -> flags.
// A broken config file falls back to defaults so queries still answer.
func (c *cli) setup() {
	if c.config != nil {
		return
	}

	files := c.configFiles
	if len(files) == 0 {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			files = append(files, defaultConfigFile)
		}
	}

	config, err := common.LoadOver(cliDefaults(), files...)
	if err != nil {
		arbor.NewLogger().Warn().Strs("paths", files).Err(err).Msg("Failed to load configuration, using defaults")
		config = cliDefaults()
	}
	common.ApplyFlagOverrides(config, c.dir, c.logLevel)
	if c.runs > 0 {
		config.Analysis.HistoryRuns = c.runs
	}

	c.config = config
	c.logger = common.SetupLogger(config)
	c.logger.Debug().
		Str("dir", config.Storage.Dir).
		Str("format", c.format).
		Strs("config_files", files).
		Msg("Resolved configuration")
}
