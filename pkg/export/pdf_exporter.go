package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0 // A4 landscape minus margins
	pdfRowHeight = 6.0
)

// PDFExporter renders tables as a landscape A4 document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return "pdf" }

// Render draws a title line followed by the table. The header row repeats on
// every page.
func (e *PDFExporter) Render(table Table, title string) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, ErrNoColumns
	}
	widths := columnWidths(table.Columns)
	titles := table.titles()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 236, 245)
		for i, t := range titles {
			pdf.CellFormat(widths[i], pdfRowHeight+1, t, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if title != "" && pdf.PageNo() == 1 {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		header()
	})
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], pdfRowHeight, tr(truncate(row[col.Key], widths[i])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(cols []Column) []float64 {
	total := 0.0
	for _, c := range cols {
		if c.Width > 0 {
			total += c.Width
		} else {
			total++
		}
	}
	widths := make([]float64, len(cols))
	for i, c := range cols {
		w := c.Width
		if w <= 0 {
			w = 1
		}
		widths[i] = pdfPageWidth * w / total
	}
	return widths
}

// truncate keeps cell text roughly inside its column at 8pt.
func truncate(s string, width float64) string {
	limit := int(width / 1.6)
	if limit < 4 || len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
