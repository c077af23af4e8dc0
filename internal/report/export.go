package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Export formats
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

// Exporter converts Markdown reports into shareable files
type Exporter struct {
	logger arbor.ILogger
}

// NewExporter creates an exporter
func NewExporter(logger arbor.ILogger) *Exporter {
	return &Exporter{logger: logger}
}

// Export renders doc in the given format (md, html or pdf)
func (e *Exporter) Export(doc Document, format string) ([]byte, error) {
	markdown := RenderMarkdown(doc)
	title := markdownTitle(doc)
	switch strings.ToLower(format) {
	case FormatMarkdown, "markdown":
		return []byte(markdown), nil
	case FormatHTML:
		return e.HTML(markdown, title)
	case FormatPDF:
		return e.PDF(markdown, title)
	default:
		return nil, fmt.Errorf("unsupported export format %q (want md, html or pdf)", format)
	}
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// HTML converts markdown into a standalone HTML page
func (e *Exporter) HTML(markdown, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := newMarkdown().Convert([]byte(markdown), &body); err != nil {
		e.logger.Error().Err(err).Int("markdown_len", len(markdown)).Msg("Failed to convert report to HTML")
		return nil, fmt.Errorf("failed to convert report to HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString(htmlStyle)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	e.logger.Debug().Int("html_len", page.Len()).Str("title", title).Msg("Report exported as HTML")
	return page.Bytes(), nil
}

const htmlStyle = `<style>
body { font-family: -apple-system, Segoe UI, Helvetica, Arial, sans-serif; max-width: 960px; margin: 2em auto; color: #222; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #eee; }
pre { background: #f5f5f5; padding: 8px; overflow-x: auto; }
code { font-family: Consolas, monospace; }
</style>
`
