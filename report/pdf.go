package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// DefaultRowsPerPage is the fixed page size of the table.
const DefaultRowsPerPage = 25

// column widths in mm, matching Columns; A4 portrait leaves 190mm.
var colWidths = []float64{18, 24, 26, 44, 26, 52}

// PDFRenderer draws a title, a header row and the table, starting a new
// page (with the header repeated) every RowsPerPage rows.
type PDFRenderer struct {
	Title       string
	RowsPerPage int
}

func NewPDFRenderer(title string, rowsPerPage int) *PDFRenderer {
	return &PDFRenderer{Title: title, RowsPerPage: rowsPerPage}
}

// Pages returns how many pages n rows occupy. An empty report is one page.
func (p *PDFRenderer) Pages(n int) int {
	per := p.rowsPerPage()
	if n <= 0 {
		return 1
	}
	return (n + per - 1) / per
}

func (p *PDFRenderer) rowsPerPage() int {
	if p.RowsPerPage <= 0 {
		return DefaultRowsPerPage
	}
	return p.RowsPerPage
}

func (p *PDFRenderer) Render(w io.Writer, rows []Row) error {
	title := p.Title
	if title == "" {
		title = "Reading Room Report"
	}
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetAutoPageBreak(false, 10)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	header := func(first bool) {
		doc.AddPage()
		if first {
			doc.SetFont("Helvetica", "B", 18)
			doc.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
			doc.Ln(4)
		}
		doc.SetFont("Helvetica", "B", 11)
		doc.SetFillColor(230, 230, 230)
		for i, col := range Columns {
			doc.CellFormat(colWidths[i], 8, col, "1", 0, "L", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Helvetica", "", 10)
	}

	per := p.rowsPerPage()
	header(true)
	for i, row := range rows {
		if i > 0 && i%per == 0 {
			header(false)
		}
		for j, v := range row.Values() {
			doc.CellFormat(colWidths[j], 7, fit(doc, tr(v), colWidths[j]-2), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// fit truncates s so it stays inside a cell of width w.
func fit(doc *fpdf.Fpdf, s string, w float64) string {
	if doc.GetStringWidth(s) <= w {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && doc.GetStringWidth(string(r)+"...") > w {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
