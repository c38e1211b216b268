// Package report builds the activity report: one row per borrow followed by
// one row per return, rendered as a paginated PDF.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"readingroom/domain"
)

const (
	TypeBorrow = "Borrow"
	TypeReturn = "Return"
)

// Row is one line of the activity report.
type Row struct {
	Type       string
	Date       string
	StudentID  string
	Name       string
	ResourceID string
	Title      string
}

// Columns are the header labels, in row field order.
var Columns = []string{"Type", "Date", "Student ID", "Name", "Resource ID", "Title"}

// Values returns the row's cells in column order.
func (r Row) Values() []string {
	return []string{r.Type, r.Date, r.StudentID, r.Name, r.ResourceID, r.Title}
}

// Compose lists every borrow row (fetch order) then every return row. Rows
// are not merged chronologically. Missing relations yield empty cells.
func Compose(borrows []domain.BorrowRecord, returns []domain.ReturnRecord) []Row {
	rows := make([]Row, 0, len(borrows)+len(returns))
	for _, b := range borrows {
		b := b
		rows = append(rows, borrowRow(TypeBorrow, b.BorrowDate, &b))
	}
	for _, r := range returns {
		rows = append(rows, borrowRow(TypeReturn, r.ReturnDate, r.BorrowRecord))
	}
	return rows
}

func borrowRow(kind, date string, b *domain.BorrowRecord) Row {
	row := Row{Type: kind, Date: date}
	if b == nil {
		return row
	}
	if s := b.Student; s != nil {
		row.StudentID = s.StudentID
		row.Name = s.FullName()
	}
	if res := b.Resource; res != nil {
		row.ResourceID = res.ResourceID
		row.Title = res.Title
	}
	return row
}

// Renderer writes rows in some document format.
type Renderer interface {
	Render(w io.Writer, rows []Row) error
}

// WriteFile renders rows to path, creating parent directories.
func WriteFile(path string, rows []Row, r Renderer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.Render(f, rows); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
