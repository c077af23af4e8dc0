package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/failscope/internal/report"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// emit writes doc in the selected structured format, or text otherwise.
// An unknown format falls back to text with a note on stderr.
func (c *cli) emit(cmd *cobra.Command, doc report.Document, text string) {
	out := cmd.OutOrStdout()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(c.format) {
	case formatJSON:
		data, err = report.RenderJSON(doc)
	case formatYAML:
		data, err = report.RenderYAML(doc)
	case formatText, "":
		writeText(out, text)
		return
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown format %q, using text\n", c.format)
		writeText(out, text)
		return
	}

	if err != nil {
		c.logger.Error().Err(err).Str("format", c.format).Msg("Failed to encode output")
		writeText(out, text)
		return
	}
	out.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		io.WriteString(out, "\n")
	}
}

func writeText(w io.Writer, text string) {
	io.WriteString(w, text)
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(w, "\n")
	}
}
