package domain

import (
	"strconv"
	"strings"
)

// ResourceType classifies a circulating resource.
type ResourceType string

const (
	ResourceBook      ResourceType = "BOOK"
	ResourceMagazine  ResourceType = "MAGAZINE"
	ResourceNewspaper ResourceType = "NEWSPAPER"
	ResourceOther     ResourceType = "OTHER"
)

// ResourceStatus is derived by the server from outstanding borrow records.
type ResourceStatus string

const (
	StatusAvailable ResourceStatus = "AVAILABLE"
	StatusBorrowed  ResourceStatus = "BORROWED"
)

// BorrowStatus is the lifecycle of a borrow record.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "ACTIVE"
	BorrowReturned BorrowStatus = "RETURNED"
	BorrowOverdue  BorrowStatus = "OVERDUE"
)

// Student is a library patron. StudentID is assigned by staff and is the
// identity key used in URLs.
type Student struct {
	StudentID string `json:"student_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// FullName joins first and last name the way lists display it.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Resource is a circulating item: book, magazine, newspaper or other.
type Resource struct {
	ResourceID      string         `json:"resource_id"`
	Title           string         `json:"title"`
	Author          string         `json:"author"`
	ResourceType    ResourceType   `json:"resource_type"`
	PublicationYear int            `json:"publication_year"`
	Status          ResourceStatus `json:"status"`
}

// BorrowRecord ties a student to a resource until it is returned.
// Student and Resource are embedded snapshots and may be missing.
type BorrowRecord struct {
	ID         int64        `json:"id"`
	BorrowID   string       `json:"borrow_id,omitempty"`
	Student    *Student     `json:"student,omitempty"`
	Resource   *Resource    `json:"resource,omitempty"`
	BorrowDate string       `json:"borrow_date"`
	DueDate    string       `json:"due_date"`
	Status     BorrowStatus `json:"status"`
}

// Key returns the record id as used in URLs.
func (b BorrowRecord) Key() string { return strconv.FormatInt(b.ID, 10) }

// ReturnRecord closes a borrow record.
type ReturnRecord struct {
	ID             int64         `json:"id"`
	BorrowRecord   *BorrowRecord `json:"borrow_record,omitempty"`
	ReturnDate     string        `json:"return_date"`
	ConditionNotes string        `json:"condition_notes,omitempty"`
}

// Key returns the record id as used in URLs.
func (r ReturnRecord) Key() string { return strconv.FormatInt(r.ID, 10) }

// User is an administrative account (librarian or admin), distinct from Student.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Key returns the user id as used in URLs.
func (u User) Key() string { return strconv.FormatInt(u.ID, 10) }

// Profile is the cached description of the logged-in account.
type Profile struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	UserLevel string `json:"user_level,omitempty"`
}

// DisplayName mirrors the header fallback chain: username, first name, "User".
func (p Profile) DisplayName() string {
	if strings.TrimSpace(p.Username) != "" {
		return p.Username
	}
	if strings.TrimSpace(p.FirstName) != "" {
		return p.FirstName
	}
	return "User"
}

// Session is the single live login: bearer token, refresh token and profile.
type Session struct {
	Token   string  `json:"token"`
	Refresh string  `json:"refresh,omitempty"`
	User    Profile `json:"user"`
}

// Valid reports whether the session carries a token at all.
func (s Session) Valid() bool { return strings.TrimSpace(s.Token) != "" }
