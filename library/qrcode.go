package library

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"

	"readingroom/domain"
)

// StudentBorrowLink is the deep link a student's QR code encodes: opening it
// starts a borrow with the student pre-filled.
func StudentBorrowLink(base string, s domain.Student) string {
	q := url.Values{}
	q.Set("student_id", s.StudentID)
	q.Set("first_name", s.FirstName)
	return strings.TrimRight(base, "/") + "/borrow?" + q.Encode()
}

// WriteStudentQR writes a PNG QR code for the student's borrow link into dir
// and returns its path.
func WriteStudentQR(dir, base string, s domain.Student, size int) (string, error) {
	if size <= 0 {
		size = 256
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create qr dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("student-%s.png", safeName(s.StudentID)))
	if err := qrcode.WriteFile(StudentBorrowLink(base, s), qrcode.Highest, size, path); err != nil {
		return "", fmt.Errorf("write qr: %w", err)
	}
	return path, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
