package form

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/domain"
)

type borrowSaver struct {
	calls   int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *borrowSaver) Create(ctx context.Context, d domain.BorrowDraft) (domain.BorrowRecord, error) {
	s.calls++
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return domain.BorrowRecord{}, s.err
	}
	return domain.BorrowRecord{ID: 1, DueDate: d.DueDate, Status: domain.BorrowActive}, nil
}

func (s *borrowSaver) Update(ctx context.Context, id string, d domain.BorrowDraft) (domain.BorrowRecord, error) {
	s.calls++
	return domain.BorrowRecord{ID: 7, DueDate: d.DueDate}, s.err
}

func newBorrowForm(s *borrowSaver) *Form[domain.BorrowRecord, domain.BorrowDraft] {
	return New[domain.BorrowRecord, domain.BorrowDraft](s, domain.BorrowToDraft, domain.BorrowRecord.Key)
}

func TestEmptyDueDateNeverReachesAPI(t *testing.T) {
	s := &borrowSaver{}
	f := newBorrowForm(s)
	require.NoError(t, f.OpenAdd(domain.BorrowDraft{StudentID: "S1"}))
	require.NoError(t, f.Edit(func(d *domain.BorrowDraft) { d.ResourceID = "R1" }))

	_, err := f.Save(context.Background())
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"due_date"}, verr.Missing)
	assert.Zero(t, s.calls)
	assert.Equal(t, Adding, f.State(), "form stays open")
	assert.Equal(t, err, f.Err())
}

func TestSaveSuccessClosesAndResets(t *testing.T) {
	s := &borrowSaver{}
	f := newBorrowForm(s)
	require.NoError(t, f.OpenAdd(domain.BorrowDraft{StudentID: "S1", ResourceID: "R1", DueDate: "2024-02-01"}))

	rec, err := f.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", rec.DueDate)
	assert.Equal(t, Closed, f.State())
	assert.Equal(t, domain.BorrowDraft{}, f.Draft())
	assert.NoError(t, f.Err())
}

func TestSaveFailureReturnsToOpenState(t *testing.T) {
	s := &borrowSaver{err: errors.New("Failed to save borrow record")}
	f := newBorrowForm(s)
	target := domain.BorrowRecord{ID: 7, Student: &domain.Student{StudentID: "S1"}, Resource: &domain.Resource{ResourceID: "R1"}, DueDate: "2024-01-01"}
	require.NoError(t, f.OpenEdit(target))
	assert.Equal(t, "7", f.EditKey())

	_, err := f.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, Editing, f.State())
	assert.EqualError(t, f.Err(), "Failed to save borrow record")
	assert.Equal(t, "S1", f.Draft().StudentID)
}

func TestEditDoesNotAliasTarget(t *testing.T) {
	f := newBorrowForm(&borrowSaver{})
	target := domain.BorrowRecord{ID: 3, Student: &domain.Student{StudentID: "S1"}, DueDate: "2024-01-01"}
	require.NoError(t, f.OpenEdit(target))
	require.NoError(t, f.Edit(func(d *domain.BorrowDraft) { d.DueDate = "2030-01-01"; d.StudentID = "S2" }))

	assert.Equal(t, "2024-01-01", target.DueDate)
	assert.Equal(t, "S1", target.Student.StudentID)
}

func TestTransitionsBlockedWhileSaving(t *testing.T) {
	s := &borrowSaver{block: make(chan struct{}), started: make(chan struct{})}
	f := newBorrowForm(s)
	require.NoError(t, f.OpenAdd(domain.BorrowDraft{StudentID: "S1", ResourceID: "R1", DueDate: "2024-02-01"}))

	done := make(chan error, 1)
	go func() {
		_, err := f.Save(context.Background())
		done <- err
	}()
	<-s.started

	assert.Equal(t, Saving, f.State())
	assert.ErrorIs(t, f.Edit(func(*domain.BorrowDraft) {}), ErrSaving)
	assert.ErrorIs(t, f.Cancel(), ErrSaving)
	assert.ErrorIs(t, f.OpenAdd(domain.BorrowDraft{}), ErrSaving)
	_, err := f.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaving)

	close(s.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, Closed, f.State())
}

func TestCancelAndClosedForm(t *testing.T) {
	f := newBorrowForm(&borrowSaver{})
	assert.ErrorIs(t, f.Edit(func(*domain.BorrowDraft) {}), ErrClosed)
	_, err := f.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, f.OpenAdd(domain.BorrowDraft{StudentID: "S1"}))
	require.NoError(t, f.Cancel())
	assert.Equal(t, Closed, f.State())
	assert.Equal(t, domain.BorrowDraft{}, f.Draft())
}
