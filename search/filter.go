// Package search implements the client-side list filter: a case-insensitive
// substring match over an entity-specific set of fields.
package search

import (
	"strconv"
	"strings"

	"readingroom/domain"
)

// Field extracts one searchable text value from a record.
type Field[T any] func(T) string

// Filter returns the records of items where any field contains term,
// ignoring case. An empty term returns items unchanged. The result keeps
// the relative order of items and the function has no side effects.
func Filter[T any](items []T, term string, fields ...Field[T]) []T {
	if term == "" {
		return items
	}
	needle := strings.ToLower(term)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Match(item, needle, fields...) {
			out = append(out, item)
		}
	}
	return out
}

// Match reports whether any field of item contains the lower-cased needle.
func Match[T any](item T, needle string, fields ...Field[T]) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f(item)), needle) {
			return true
		}
	}
	return false
}

func studentName(s *domain.Student) string {
	if s == nil {
		return ""
	}
	return s.FullName()
}

// StudentFields: id, first name, last name, phone, email.
var StudentFields = []Field[domain.Student]{
	func(s domain.Student) string { return s.StudentID },
	func(s domain.Student) string { return s.FirstName },
	func(s domain.Student) string { return s.LastName },
	func(s domain.Student) string { return s.Phone },
	func(s domain.Student) string { return s.Email },
}

// ResourceFields: id, title, author, type, publication year, status.
var ResourceFields = []Field[domain.Resource]{
	func(r domain.Resource) string { return r.ResourceID },
	func(r domain.Resource) string { return r.Title },
	func(r domain.Resource) string { return r.Author },
	func(r domain.Resource) string { return string(r.ResourceType) },
	func(r domain.Resource) string { return strconv.Itoa(r.PublicationYear) },
	func(r domain.Resource) string { return string(r.Status) },
}

// BorrowFields: student full name, resource title, borrow date, due date, status.
var BorrowFields = []Field[domain.BorrowRecord]{
	func(b domain.BorrowRecord) string { return studentName(b.Student) },
	func(b domain.BorrowRecord) string {
		if b.Resource == nil {
			return ""
		}
		return b.Resource.Title
	},
	func(b domain.BorrowRecord) string { return b.BorrowDate },
	func(b domain.BorrowRecord) string { return b.DueDate },
	func(b domain.BorrowRecord) string { return string(b.Status) },
}

// ReturnFields: return date, student id, student name, resource id, resource title.
var ReturnFields = []Field[domain.ReturnRecord]{
	func(r domain.ReturnRecord) string { return r.ReturnDate },
	func(r domain.ReturnRecord) string {
		if r.BorrowRecord == nil || r.BorrowRecord.Student == nil {
			return ""
		}
		return r.BorrowRecord.Student.StudentID
	},
	func(r domain.ReturnRecord) string {
		if r.BorrowRecord == nil {
			return ""
		}
		return studentName(r.BorrowRecord.Student)
	},
	func(r domain.ReturnRecord) string {
		if r.BorrowRecord == nil || r.BorrowRecord.Resource == nil {
			return ""
		}
		return r.BorrowRecord.Resource.ResourceID
	},
	func(r domain.ReturnRecord) string {
		if r.BorrowRecord == nil || r.BorrowRecord.Resource == nil {
			return ""
		}
		return r.BorrowRecord.Resource.Title
	},
}

// UserFields: id, last name, first name, email.
var UserFields = []Field[domain.User]{
	func(u domain.User) string { return strconv.FormatInt(u.ID, 10) },
	func(u domain.User) string { return u.LastName },
	func(u domain.User) string { return u.FirstName },
	func(u domain.User) string { return u.Email },
}
