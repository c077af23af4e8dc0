package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBannerWritesToWriter(t *testing.T) {
	config := NewDefaultConfig()
	config.Storage.Dir = "run-logs"

	var buf bytes.Buffer
	PrintBanner(&buf, config, "1.2.3")

	out := buf.String()
	assert.Contains(t, out, "Failscope")
	assert.Contains(t, out, "v1.2.3")
	assert.Contains(t, out, "Failure logs:")
	assert.Contains(t, out, "run-logs")
	assert.Contains(t, out, "Run archive:")
	assert.NotContains(t, out, "\033[38;2", "no colour codes when not writing to a terminal")
}

func TestPrintBannerWithoutConfig(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, nil, "dev")

	assert.Contains(t, buf.String(), "vdev")
	assert.NotContains(t, buf.String(), "Failure logs")
}
