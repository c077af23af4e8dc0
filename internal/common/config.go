package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the failure-analysis configuration
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Storage  StorageConfig  `toml:"storage"`
	Capture  CaptureConfig  `toml:"capture"`
	Analysis AnalysisConfig `toml:"analysis"`
	Page     PageConfig     `toml:"page"`
	Archive  ArchiveConfig  `toml:"archive"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`   // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                          // Time format for logs (default: "15:04:05")
	Dir        string   `toml:"dir"`                                                  // Directory for the log file when output includes "file"
}

// StorageConfig controls where failure logs and run dumps are written
type StorageConfig struct {
	Dir           string `toml:"dir" validate:"required"`          // Root of the persisted layout (default: "error-logs")
	LatestLimit   int    `toml:"latest_limit" validate:"min=1"`    // Records kept in latest-handler-errors.json (default: 100)
	RecentEntries int    `toml:"recent_entries" validate:"min=0"`  // Entries shown in the store's text report (default: 10)
}

// CaptureConfig controls context capture at failure time
type CaptureConfig struct {
	StepTimeout   string `toml:"step_timeout"`   // e.g., "3s" - per capture step
	Screenshots   bool   `toml:"screenshots"`    // Take a screenshot for every recorded failure
	FullPage      bool   `toml:"full_page"`      // Full-page rather than viewport screenshots
	DOMSource     bool   `toml:"dom_source"`     // Store full DOM source with each failure
	ScreenshotDir string `toml:"screenshot_dir"` // Default: <storage.dir>/screenshots
	ConsoleLimit  int    `toml:"console_limit" validate:"min=0"`
	NetworkLimit  int    `toml:"network_limit" validate:"min=0"`
	MaxElements   int    `toml:"max_elements" validate:"min=1"` // Strict-mode element descriptions kept
}

// AnalysisConfig holds the pattern analyzer thresholds
type AnalysisConfig struct {
	FlakyThreshold       float64 `toml:"flaky_threshold" validate:"gt=0,lte=1"`        // Share of runs at which a failing test is consistent (default: 0.8)
	TimeoutHighRatio     float64 `toml:"timeout_high_ratio" validate:"gte=0,lte=1"`    // Timeout share of failures that makes the insight high priority (default: 0.3)
	SelectorHighRatio    float64 `toml:"selector_high_ratio" validate:"gte=0,lte=1"`   // Selector share of failures that makes the insight high priority (default: 0.4)
	EnvironmentSkewRatio float64 `toml:"environment_skew_ratio" validate:"gt=0,lte=1"` // Share of failures in one project that triggers the skew insight (default: 0.8)
	MinOccurrences       int     `toml:"min_occurrences" validate:"min=1"`             // Failures a partition needs before it yields an insight
	TrendingLimit        int     `toml:"trending_limit" validate:"min=1"`
	ExampleMessages      int     `toml:"example_messages" validate:"min=0"`
	HistoryRuns          int     `toml:"history_runs" validate:"min=1"` // Runs loaded for history analysis
}

// PageConfig records how the browser collaborator was configured
type PageConfig struct {
	Retries int `toml:"retries" validate:"min=0"` // Page operation retries (default: 0, single attempt)
}

// ArchiveConfig controls the Badger run archive
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Path           string `toml:"path"`                       // Default: <storage.dir>/archive
	ResetOnStartup bool   `toml:"reset_on_startup"`           // Delete the archive on startup for clean runs
	KeepRuns       int    `toml:"keep_runs" validate:"min=0"` // Runs kept after each save (default: 0, keep all)
}

// NewDefaultConfig returns the configuration with all defaults applied
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Storage: StorageConfig{
			Dir:           "error-logs",
			LatestLimit:   100,
			RecentEntries: 10,
		},
		Capture: CaptureConfig{
			StepTimeout:  "3s",
			Screenshots:  true,
			FullPage:     true,
			DOMSource:    false,
			ConsoleLimit: 200,
			NetworkLimit: 200,
			MaxElements:  3,
		},
		Analysis: AnalysisConfig{
			FlakyThreshold:       0.8,
			TimeoutHighRatio:     0.3,
			SelectorHighRatio:    0.4,
			EnvironmentSkewRatio: 0.8,
			MinOccurrences:       1,
			TrendingLimit:        10,
			ExampleMessages:      3,
			HistoryRuns:          10,
		},
		Page: PageConfig{
			Retries: 0,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied by the caller afterwards.
func LoadFromFiles(paths ...string) (*Config, error) {
	return LoadOver(NewDefaultConfig(), paths...)
}

// LoadOver is LoadFromFiles starting from base instead of the defaults.
// base is modified in place.
func LoadOver(base *Config, paths ...string) (*Config, error) {
	config := base
	if config == nil {
		config = NewDefaultConfig()
	}

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints and duration strings
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Capture.StepTimeout != "" {
		if _, err := time.ParseDuration(c.Capture.StepTimeout); err != nil {
			return fmt.Errorf("invalid capture.step_timeout %q: %w", c.Capture.StepTimeout, err)
		}
	}
	return nil
}

// StepTimeoutDuration returns the parsed capture step timeout (default 3s)
func (c CaptureConfig) StepTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StepTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// ScreenshotPath resolves the screenshot directory against the storage dir
func (c *Config) ScreenshotPath() string {
	if c.Capture.ScreenshotDir != "" {
		return c.Capture.ScreenshotDir
	}
	return filepath.Join(c.Storage.Dir, "screenshots")
}

// ArchivePath resolves the archive directory against the storage dir
func (c *Config) ArchivePath() string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	return filepath.Join(c.Storage.Dir, "archive")
}

// ApplyFlagOverrides applies command-line flags (highest priority)
func ApplyFlagOverrides(config *Config, dir string, logLevel string) {
	if dir != "" {
		config.Storage.Dir = dir
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// applyEnvOverrides applies FAILSCOPE_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Logging configuration
	if level := os.Getenv("FAILSCOPE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FAILSCOPE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage configuration
	if dir := os.Getenv("FAILSCOPE_STORAGE_DIR"); dir != "" {
		config.Storage.Dir = dir
	}
	if limit := os.Getenv("FAILSCOPE_LATEST_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Storage.LatestLimit = l
		}
	}

	// Capture configuration
	if timeout := os.Getenv("FAILSCOPE_CAPTURE_STEP_TIMEOUT"); timeout != "" {
		config.Capture.StepTimeout = timeout
	}
	if screenshots := os.Getenv("FAILSCOPE_CAPTURE_SCREENSHOTS"); screenshots != "" {
		if s, err := strconv.ParseBool(screenshots); err == nil {
			config.Capture.Screenshots = s
		}
	}
	if dom := os.Getenv("FAILSCOPE_CAPTURE_DOM_SOURCE"); dom != "" {
		if d, err := strconv.ParseBool(dom); err == nil {
			config.Capture.DOMSource = d
		}
	}

	// Analysis configuration
	if threshold := os.Getenv("FAILSCOPE_FLAKY_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Analysis.FlakyThreshold = t
		}
	}
	if runs := os.Getenv("FAILSCOPE_HISTORY_RUNS"); runs != "" {
		if r, err := strconv.Atoi(runs); err == nil {
			config.Analysis.HistoryRuns = r
		}
	}

	// Page configuration
	if retries := os.Getenv("FAILSCOPE_PAGE_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Page.Retries = r
		}
	}

	// Archive configuration
	if enabled := os.Getenv("FAILSCOPE_ARCHIVE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Archive.Enabled = e
		}
	}
	if path := os.Getenv("FAILSCOPE_ARCHIVE_PATH"); path != "" {
		config.Archive.Path = path
	}
}
