package domain

import (
	"strconv"
	"strings"
)

// Drafts are the write shapes sent to the API. They are form-local copies
// and never alias an entity held by a collection.

type StudentDraft struct {
	StudentID string `json:"student_id" validate:"notblank"`
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
	Phone     string `json:"phone" validate:"notblank"`
	Email     string `json:"email" validate:"notblank"`
}

// ResourceDraft omits status: the server owns it.
type ResourceDraft struct {
	ResourceID      string       `json:"resource_id" validate:"notblank"`
	Title           string       `json:"title" validate:"notblank"`
	Author          string       `json:"author" validate:"notblank"`
	ResourceType    ResourceType `json:"resource_type" validate:"notblank,oneof=BOOK MAGAZINE NEWSPAPER OTHER"`
	PublicationYear int          `json:"publication_year" validate:"required,min=1900,max=2099"`
}

type BorrowDraft struct {
	StudentID  string `json:"student_id" validate:"notblank"`
	ResourceID string `json:"resource_id" validate:"notblank"`
	DueDate    string `json:"due_date" validate:"notblank"`
}

type ReturnDraft struct {
	BorrowRecordID string `json:"borrow_record_id" validate:"notblank"`
	ConditionNotes string `json:"condition_notes,omitempty"`
}

type UserDraft struct {
	Username  string `json:"username" validate:"notblank"`
	Email     string `json:"email" validate:"notblank"`
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
	Password  string `json:"password" validate:"notblank"`
	Password2 string `json:"password2" validate:"notblank,eqfield=Password"`
}

func StudentToDraft(s Student) StudentDraft {
	return StudentDraft{
		StudentID: s.StudentID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Phone:     s.Phone,
		Email:     s.Email,
	}
}

func ResourceToDraft(r Resource) ResourceDraft {
	return ResourceDraft{
		ResourceID:      r.ResourceID,
		Title:           r.Title,
		Author:          r.Author,
		ResourceType:    r.ResourceType,
		PublicationYear: r.PublicationYear,
	}
}

func BorrowToDraft(b BorrowRecord) BorrowDraft {
	d := BorrowDraft{DueDate: b.DueDate}
	if b.Student != nil {
		d.StudentID = b.Student.StudentID
	}
	if b.Resource != nil {
		d.ResourceID = b.Resource.ResourceID
	}
	return d
}

func ReturnToDraft(r ReturnRecord) ReturnDraft {
	d := ReturnDraft{ConditionNotes: r.ConditionNotes}
	if r.BorrowRecord != nil {
		d.BorrowRecordID = strconv.FormatInt(r.BorrowRecord.ID, 10)
	}
	return d
}

// UserToDraft leaves the password pair empty so an edit must supply it again.
func UserToDraft(u User) UserDraft {
	return UserDraft{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Trim normalizes whitespace on every text field before validation.
func (d *StudentDraft) Trim() {
	d.StudentID = strings.TrimSpace(d.StudentID)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.TrimSpace(d.Email)
}

func (d *ResourceDraft) Trim() {
	d.ResourceID = strings.TrimSpace(d.ResourceID)
	d.Title = strings.TrimSpace(d.Title)
	d.Author = strings.TrimSpace(d.Author)
	d.ResourceType = ResourceType(strings.ToUpper(strings.TrimSpace(string(d.ResourceType))))
}

func (d *BorrowDraft) Trim() {
	d.StudentID = strings.TrimSpace(d.StudentID)
	d.ResourceID = strings.TrimSpace(d.ResourceID)
	d.DueDate = strings.TrimSpace(d.DueDate)
}

func (d *ReturnDraft) Trim() {
	d.BorrowRecordID = strings.TrimSpace(d.BorrowRecordID)
	d.ConditionNotes = strings.TrimSpace(d.ConditionNotes)
}

// Passwords are taken as typed.
func (d *UserDraft) Trim() {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.TrimSpace(d.Email)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
}
