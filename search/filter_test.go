package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/domain"
)

var titleOnly = []Field[domain.Resource]{func(r domain.Resource) string { return r.Title }}

func TestFilterTitleScenario(t *testing.T) {
	items := []domain.Resource{{Title: "Python Basics"}, {Title: "Go in Action"}}
	got := Filter(items, "go", titleOnly...)
	require.Len(t, got, 1)
	assert.Equal(t, "Go in Action", got[0].Title)
}

func TestFilterEmptyTermIsIdentity(t *testing.T) {
	items := []domain.Student{{StudentID: "b"}, {StudentID: "a"}, {StudentID: "c"}}
	assert.Equal(t, items, Filter(items, "", StudentFields...))
	assert.Nil(t, Filter[domain.Student](nil, "", StudentFields...))
}

func TestFilterSoundAndComplete(t *testing.T) {
	students := []domain.Student{
		{StudentID: "2021-001", FirstName: "Maria", LastName: "Santos", Phone: "0917", Email: "maria@school.edu"},
		{StudentID: "2021-002", FirstName: "Jose", LastName: "Rizal", Phone: "0918", Email: "jose@school.edu"},
		{StudentID: "2022-003", FirstName: "Andres", LastName: "Bonifacio", Phone: "0919", Email: "andres@mail.com"},
		{StudentID: "2022-004", FirstName: "MARIANO", LastName: "Ponce", Phone: "0920", Email: "mp@school.edu"},
	}
	terms := []string{"mari", "SCHOOL", "2022", "0919", "zzz", "o", " "}

	for _, term := range terms {
		got := Filter(students, term, StudentFields...)
		kept := map[string]bool{}
		for _, s := range got {
			kept[s.StudentID] = true
			assert.True(t, Match(s, strings.ToLower(term), StudentFields...), "term %q kept non-matching %s", term, s.StudentID)
		}
		for _, s := range students {
			if !kept[s.StudentID] {
				assert.False(t, Match(s, strings.ToLower(term), StudentFields...), "term %q dropped matching %s", term, s.StudentID)
			}
		}
	}
}

func TestFilterPreservesOrderAndIsDeterministic(t *testing.T) {
	items := []domain.Resource{
		{ResourceID: "R3", Title: "Go Programming"},
		{ResourceID: "R1", Title: "Learning Go"},
		{ResourceID: "R2", Title: "Rust"},
		{ResourceID: "R4", Title: "go tooling"},
	}
	first := Filter(items, "GO", ResourceFields...)
	second := Filter(items, "GO", ResourceFields...)
	require.Equal(t, first, second)

	var ids []string
	for _, r := range first {
		ids = append(ids, r.ResourceID)
	}
	assert.Equal(t, []string{"R3", "R1", "R4"}, ids)
	assert.Equal(t, "R3", items[0].ResourceID, "input must not be reordered")
}

func TestResourceFieldsMatchYearAndStatus(t *testing.T) {
	items := []domain.Resource{
		{ResourceID: "R1", Title: "A", PublicationYear: 1999, Status: domain.StatusBorrowed, ResourceType: domain.ResourceMagazine},
		{ResourceID: "R2", Title: "B", PublicationYear: 2020, Status: domain.StatusAvailable, ResourceType: domain.ResourceBook},
	}
	assert.Len(t, Filter(items, "1999", ResourceFields...), 1)
	assert.Len(t, Filter(items, "borrowed", ResourceFields...), 1)
	assert.Len(t, Filter(items, "magazine", ResourceFields...), 1)
}

func TestBorrowAndReturnFieldsTolerateMissingRelations(t *testing.T) {
	borrows := []domain.BorrowRecord{
		{ID: 1, Student: &domain.Student{FirstName: "Maria", LastName: "Santos"}, Resource: &domain.Resource{Title: "Noli"}, BorrowDate: "2025-01-02", DueDate: "2025-01-09", Status: domain.BorrowActive},
		{ID: 2, BorrowDate: "2025-02-01", DueDate: "2025-02-08", Status: domain.BorrowReturned},
	}
	got := Filter(borrows, "maria santos", BorrowFields...)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Len(t, Filter(borrows, "returned", BorrowFields...), 1)

	returns := []domain.ReturnRecord{
		{ID: 9, ReturnDate: "2025-03-01"},
		{ID: 10, ReturnDate: "2025-03-02", BorrowRecord: &borrows[0]},
	}
	got2 := Filter(returns, "noli", ReturnFields...)
	require.Len(t, got2, 1)
	assert.Equal(t, int64(10), got2[0].ID)
	assert.Len(t, Filter(returns, "2025-03", ReturnFields...), 2)
}

func TestUserFieldsMatchID(t *testing.T) {
	users := []domain.User{{ID: 12, Username: "a"}, {ID: 3, Username: "b"}}
	got := Filter(users, "12", UserFields...)
	require.Len(t, got, 1)
	assert.Equal(t, int64(12), got[0].ID)
}
