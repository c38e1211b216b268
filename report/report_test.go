package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/domain"
)

func TestComposeBorrowsThenReturns(t *testing.T) {
	ana := &domain.Student{StudentID: "S1", FirstName: "Ana", LastName: "Lee"}
	atlas := &domain.Resource{ResourceID: "R1", Title: "Atlas"}
	borrow := domain.BorrowRecord{ID: 1, Student: ana, Resource: atlas, BorrowDate: "2024-01-02"}
	ret := domain.ReturnRecord{ID: 1, BorrowRecord: &borrow, ReturnDate: "2024-01-09"}

	rows := Compose([]domain.BorrowRecord{borrow}, []domain.ReturnRecord{ret})
	require.Len(t, rows, 2)
	assert.Equal(t, Row{TypeBorrow, "2024-01-02", "S1", "Ana Lee", "R1", "Atlas"}, rows[0])
	assert.Equal(t, Row{TypeReturn, "2024-01-09", "S1", "Ana Lee", "R1", "Atlas"}, rows[1])
}

func TestComposeIsNotChronological(t *testing.T) {
	borrows := []domain.BorrowRecord{{BorrowDate: "2024-03-01"}, {BorrowDate: "2024-01-01"}}
	returns := []domain.ReturnRecord{{ReturnDate: "2023-12-31"}}

	rows := Compose(borrows, returns)
	var dates []string
	for _, r := range rows {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []string{"2024-03-01", "2024-01-01", "2023-12-31"}, dates)
}

func TestComposeToleratesMissingRelations(t *testing.T) {
	rows := Compose(
		[]domain.BorrowRecord{{ID: 1, BorrowDate: "2024-01-01"}},
		[]domain.ReturnRecord{{ID: 2, ReturnDate: "2024-01-05"}, {ID: 3, BorrowRecord: &domain.BorrowRecord{Resource: &domain.Resource{ResourceID: "R2"}}}},
	)
	require.Len(t, rows, 3)
	assert.Empty(t, rows[0].Name)
	assert.Empty(t, rows[1].StudentID)
	assert.Equal(t, "R2", rows[2].ResourceID)
	assert.Empty(t, rows[2].Name)
}

func TestPages(t *testing.T) {
	r := NewPDFRenderer("", 0)
	assert.Equal(t, 1, r.Pages(0))
	assert.Equal(t, 1, r.Pages(25))
	assert.Equal(t, 2, r.Pages(26))
	assert.Equal(t, 3, NewPDFRenderer("", 10).Pages(21))
}

func TestWriteFileProducesPaginatedPDF(t *testing.T) {
	rows := make([]Row, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, Row{
			Type:       TypeBorrow,
			Date:       "2024-01-01",
			StudentID:  fmt.Sprintf("S%d", i),
			Name:       "Zoë Ångström",
			ResourceID: fmt.Sprintf("R%d", i),
			Title:      "A rather long title that will not fit inside its column at all",
		})
	}
	out := filepath.Join(t.TempDir(), "reports", "report.pdf")
	renderer := NewPDFRenderer("Reading Room Report", 25)
	require.NoError(t, WriteFile(out, rows, renderer))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	f, doc, err := pdf.Open(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, renderer.Pages(len(rows)), doc.NumPage())
}

func TestEmptyReportIsOnePage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPDFRenderer("Empty", 25).Render(&buf, nil))

	doc, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.NumPage())
}
