package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBorrowDraftMissingDueDate(t *testing.T) {
	d := BorrowDraft{StudentID: "2021-0001", ResourceID: "R-1", DueDate: "   "}
	err := Validate(&d)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"due_date"}, verr.Missing)
	assert.Contains(t, err.Error(), "due_date")
}

func TestValidateTrimsDraft(t *testing.T) {
	d := StudentDraft{StudentID: " S1 ", FirstName: "Ada ", LastName: " Lovelace", Phone: "0917", Email: "ada@example.com"}
	require.NoError(t, Validate(&d))
	assert.Equal(t, "S1", d.StudentID)
	assert.Equal(t, "Ada", d.FirstName)
	assert.Equal(t, "Lovelace", d.LastName)
}

func TestValidateResourceDraft(t *testing.T) {
	d := ResourceDraft{ResourceID: "R1", Title: "Go in Action", Author: "Kennedy", ResourceType: "book", PublicationYear: 2015}
	require.NoError(t, Validate(&d))
	assert.Equal(t, ResourceBook, d.ResourceType)

	bad := ResourceDraft{ResourceID: "R2", Title: "Old", Author: "Anon", ResourceType: "SCROLL", PublicationYear: 1850}
	err := Validate(&bad)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"resource_type", "publication_year"}, verr.Invalid)
}

func TestValidateUserPasswordPair(t *testing.T) {
	d := UserDraft{Username: "lib", Email: "lib@example.com", FirstName: "Li", LastName: "Brarian", Password: "secret1", Password2: "secret2"}
	err := Validate(&d)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Mismatch)
	assert.Empty(t, verr.Missing)

	d.Password2 = "secret1"
	assert.NoError(t, Validate(&d))
}

func TestUserToDraftDropsPasswords(t *testing.T) {
	d := UserToDraft(User{ID: 4, Username: "lib", Email: "e", FirstName: "f", LastName: "l"})
	assert.Empty(t, d.Password)
	assert.Empty(t, d.Password2)
	assert.Equal(t, "lib", d.Username)
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "admin", Profile{Username: "admin", FirstName: "Ann"}.DisplayName())
	assert.Equal(t, "Ann", Profile{FirstName: "Ann"}.DisplayName())
	assert.Equal(t, "User", Profile{}.DisplayName())
}
