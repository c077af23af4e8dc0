package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfigIsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 100, config.Storage.LatestLimit)
	assert.Equal(t, 0.8, config.Analysis.FlakyThreshold)
	assert.Equal(t, 0, config.Page.Retries)
	assert.Equal(t, 3*time.Second, config.Capture.StepTimeoutDuration())
	assert.Equal(t, filepath.Join("error-logs", "screenshots"), config.ScreenshotPath())
	assert.Equal(t, filepath.Join("error-logs", "archive"), config.ArchivePath())
}

func TestLoadFromFilesMergesInOrder(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[storage]
dir = "base-logs"
latest_limit = 50

[analysis]
flaky_threshold = 0.7
`)
	override := writeConfig(t, "override.toml", `
[storage]
latest_limit = 25

[capture]
step_timeout = "500ms"
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, "base-logs", config.Storage.Dir)
	assert.Equal(t, 25, config.Storage.LatestLimit)
	assert.Equal(t, 0.7, config.Analysis.FlakyThreshold)
	assert.Equal(t, 500*time.Millisecond, config.Capture.StepTimeoutDuration())
	assert.True(t, config.Capture.Screenshots, "defaults survive partial files")
}

func TestLoadFromFilesEnvOverrides(t *testing.T) {
	t.Setenv("FAILSCOPE_STORAGE_DIR", "env-logs")
	t.Setenv("FAILSCOPE_FLAKY_THRESHOLD", "0.9")
	t.Setenv("FAILSCOPE_LOG_OUTPUT", "stdout, file")
	t.Setenv("FAILSCOPE_ARCHIVE_ENABLED", "true")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "env-logs", config.Storage.Dir)
	assert.Equal(t, 0.9, config.Analysis.FlakyThreshold)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.True(t, config.Archive.Enabled)
}

func TestLoadFromFilesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold above one", "[analysis]\nflaky_threshold = 1.5\n"},
		{"zero latest limit", "[storage]\nlatest_limit = 0\n"},
		{"bad duration", "[capture]\nstep_timeout = \"soon\"\n"},
		{"bad level", "[logging]\nlevel = \"loud\"\n"},
		{"bad toml", "[storage\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFiles(writeConfig(t, "c.toml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, "", "")
	assert.Equal(t, "error-logs", config.Storage.Dir)

	ApplyFlagOverrides(config, "ci-logs", "debug")
	assert.Equal(t, "ci-logs", config.Storage.Dir)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestNewFailureIDSortsBySequence(t *testing.T) {
	a := NewFailureID(9)
	b := NewFailureID(10)
	assert.Less(t, a, b)
	assert.Regexp(t, `^err_00000009_[0-9a-f]{8}$`, a)
	assert.Regexp(t, `^run_`, NewSessionID())
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}
