package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pdfFont       = "Arial"
	pdfFontSize   = 9.0
	pdfLineHeight = 5.0
	pdfPageWidth  = 190.0
	pdfPageHeight = 297.0 - 10.0
)

// PDF converts markdown into an A4 PDF. Only the Markdown produced by
// RenderMarkdown is supported: headings, paragraphs, emphasis, lists,
// code and tables.
func (e *Exporter) PDF(markdown, title string) ([]byte, error) {
	e.logger.Debug().Int("markdown_len", len(markdown)).Str("title", title).Msg("Converting report to PDF")

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.AddPage()
	doc.SetFont(pdfFont, "", pdfFontSize)

	source := []byte(markdown)
	root := newMarkdown().Parser().Parse(text.NewReader(source))

	w := &pdfWriter{
		pdf:    doc,
		source: source,
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
	}
	if err := ast.Walk(root, w.walk); err != nil {
		e.logger.Error().Err(err).Msg("Failed to render PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		e.logger.Error().Err(err).Msg("Failed to write PDF output")
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}

	e.logger.Debug().Int("pdf_size", buf.Len()).Msg("Report exported as PDF")
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	bold      bool
	italic    bool
	listLevel int
}

func (w *pdfWriter) setFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(pdfFont, style, pdfFontSize)
}

func (w *pdfWriter) write(s string) {
	w.pdf.Write(pdfLineHeight, w.tr(s))
}

func (w *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(5)
			w.pdf.SetFont(pdfFont, "B", headingSize(node.Level))
		} else {
			w.pdf.Ln(6)
			w.setFont()
		}
	case *ast.Paragraph:
		if !entering && w.listLevel == 0 {
			w.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			w.write(string(node.Segment.Value(w.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.write(" ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.setFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", pdfFontSize)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					w.write(string(t.Segment.Value(w.source)))
				}
			}
			w.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listLevel++
		} else {
			w.listLevel--
			if w.listLevel == 0 {
				w.pdf.Ln(7)
			}
		}
	case *ast.ListItem:
		if entering {
			if node.PreviousSibling() != nil {
				w.pdf.Ln(pdfLineHeight)
			}
			w.pdf.SetX(10 + float64(w.listLevel)*5)
			w.write("- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(10, w.pdf.GetY(), 200, w.pdf.GetY())
			w.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			w.table(tableRows(node, w.source))
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 14
	case 2:
		return 12
	case 3:
		return 11
	default:
		return 10
	}
}

func (w *pdfWriter) codeBlock(lines *text.Segments) {
	w.pdf.SetFont("Courier", "", 8)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.pdf.MultiCell(0, 4, w.tr(strings.TrimRight(string(line.Value(w.source)), "\n")), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.setFont()
	w.pdf.Ln(3)
}

func tableRows(table *extast.Table, source []byte) [][]string {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			if _, ok := cell.(*extast.TableCell); ok {
				row = append(row, cellText(cell, source))
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func cellText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// table draws rows with equal-width columns, wrapping each cell up to
// maxCellLines lines
func (w *pdfWriter) table(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	const (
		fontSize     = 8.0
		lineHeight   = 4.0
		maxCellLines = 6
	)
	cols := len(rows[0])
	colWidth := pdfPageWidth / float64(cols)

	w.pdf.Ln(2)
	for i, row := range rows {
		if i == 0 {
			w.pdf.SetFont(pdfFont, "B", fontSize)
			w.pdf.SetFillColor(230, 230, 230)
		} else {
			w.pdf.SetFont(pdfFont, "", fontSize)
		}

		wrapped := make([][]string, cols)
		lines := 1
		for j := 0; j < cols && j < len(row); j++ {
			wrapped[j] = w.pdf.SplitText(w.tr(row[j]), colWidth-2)
			if len(wrapped[j]) > maxCellLines {
				wrapped[j] = append(wrapped[j][:maxCellLines-1], wrapped[j][maxCellLines-1]+"...")
			}
			if len(wrapped[j]) > lines {
				lines = len(wrapped[j])
			}
		}

		height := float64(lines)*lineHeight + 2
		y := w.pdf.GetY()
		if y+height > pdfPageHeight {
			w.pdf.AddPage()
			y = w.pdf.GetY()
		}
		x := 10.0
		for j := 0; j < cols; j++ {
			style := "D"
			if i == 0 {
				style = "FD"
			}
			w.pdf.Rect(x, y, colWidth, height, style)
			for k, line := range wrapped[j] {
				w.pdf.SetXY(x+1, y+1+float64(k)*lineHeight)
				w.pdf.CellFormat(colWidth-2, lineHeight, line, "", 0, "L", false, 0, "")
			}
			x += colWidth
		}
		w.pdf.SetXY(10, y+height)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.setFont()
	w.pdf.Ln(3)
}
