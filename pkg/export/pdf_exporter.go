package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Document is a titled table with optional key/value lines printed above it.
type Document struct {
	Title   string
	Details [][2]string
	Widths  []float64
	Data    Dataset
}

// PDFExporter renders documents into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape A4 PDF for doc. Widths are relative weights per
// header; equal columns are used when they are missing.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	headers := doc.Data.Headers
	if len(headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}

	if len(doc.Details) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, kv := range doc.Details {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(40, 6, tr(kv[0]), "", 0, "", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, tr(kv[1]), "", 1, "", false, 0, "")
		}
		pdf.Ln(4)
	}

	widths := columnWidths(headers, doc.Widths, 277.0)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range doc.Data.Rows {
		for i, header := range headers {
			pdf.CellFormat(widths[i], 7, tr(truncate(row[header], int(widths[i]*0.55))), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(headers []string, weights []float64, total float64) []float64 {
	widths := make([]float64, len(headers))
	if len(weights) != len(headers) {
		for i := range widths {
			widths[i] = total / float64(len(headers))
		}
		return widths
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	for i, w := range weights {
		widths[i] = total * w / sum
	}
	return widths
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 3 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
