package devserver

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"readingroom/domain"
)

// fieldErrors is a DRF-shaped validation payload: field -> messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) { f[field] = append(f[field], msg) }

func nonField(msg string) fieldErrors { return fieldErrors{"non_field_errors": {msg}} }

var errNotFound = errors.New("not found")

type account struct {
	user  domain.User
	hash  []byte
	level string
}

type borrow struct {
	id         int64
	borrowID   string
	studentID  string
	resourceID string
	borrowDate string
	dueDate    string
	status     domain.BorrowStatus
}

type returnRow struct {
	id       int64
	borrowID int64
	date     string
	notes    string
}

// store is the in-memory database. Slices keep insertion order, which is
// the list order the API returns.
type store struct {
	mu        sync.Mutex
	students  []domain.Student
	resources []domain.Resource
	borrows   []*borrow
	returns   []*returnRow
	accounts  []*account
	revoked   map[string]bool

	nextBorrow, nextReturn, nextUser int64
}

func newStore() *store {
	return &store{revoked: map[string]bool{}}
}

// fromValidation turns a local draft check into the server's payload.
func fromValidation(err error) fieldErrors {
	verr, ok := err.(*domain.ValidationError)
	if !ok {
		return nonField(err.Error())
	}
	out := fieldErrors{}
	for _, f := range verr.Missing {
		out.add(f, "This field may not be blank.")
	}
	for _, f := range verr.Invalid {
		out.add(f, "Invalid value.")
	}
	if verr.Mismatch {
		out.add("non_field_errors", "Passwords do not match.")
	}
	return out
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func (s *store) addAccount(d domain.UserDraft, level string) (domain.User, fieldErrors) {
	if err := domain.Validate(&d); err != nil {
		return domain.User{}, fromValidation(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(d.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, nonField(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Username, d.Username) {
			return domain.User{}, fieldErrors{"username": {"A user with that username already exists."}}
		}
	}
	s.nextUser++
	a := &account{
		user: domain.User{
			ID:        s.nextUser,
			Username:  d.Username,
			Email:     d.Email,
			FirstName: d.FirstName,
			LastName:  d.LastName,
		},
		hash:  hash,
		level: level,
	}
	s.accounts = append(s.accounts, a)
	return a.user, nil
}

func (s *store) updateAccount(id int64, d domain.UserDraft) (domain.User, fieldErrors, error) {
	if err := domain.Validate(&d); err != nil {
		return domain.User{}, fromValidation(err), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(d.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, nonField(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *account
	for _, a := range s.accounts {
		if a.user.ID == id {
			target = a
		} else if strings.EqualFold(a.user.Username, d.Username) {
			return domain.User{}, fieldErrors{"username": {"A user with that username already exists."}}, nil
		}
	}
	if target == nil {
		return domain.User{}, nil, errNotFound
	}
	target.user.Username = d.Username
	target.user.Email = d.Email
	target.user.FirstName = d.FirstName
	target.user.LastName = d.LastName
	target.hash = hash
	return target.user, nil, nil
}

// authenticate returns the account matching the credentials.
func (s *store) authenticate(username, password string) (*account, bool) {
	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if a.user.Username == username {
			found = a
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(found.hash, []byte(password)) != nil {
		return nil, false
	}
	return found, true
}

func (s *store) listUsers() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user)
	}
	return out
}

func (s *store) getUser(id int64) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return domain.User{}, false
}

func (s *store) deleteUser(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		if a.user.ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return true
		}
	}
	return false
}

func (s *store) revoke(jti string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = true
}

func (s *store) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti]
}

// ---------------------------------------------------------------------------
// Students
// ---------------------------------------------------------------------------

func (s *store) studentIndex(id string) int {
	for i, st := range s.students {
		if st.StudentID == id {
			return i
		}
	}
	return -1
}

func (s *store) listStudents() []domain.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Student{}, s.students...)
}

func (s *store) getStudent(id string) (domain.Student, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.studentIndex(id); i >= 0 {
		return s.students[i], true
	}
	return domain.Student{}, false
}

func (s *store) putStudent(id string, d domain.StudentDraft) (domain.Student, fieldErrors, error) {
	if err := domain.Validate(&d); err != nil {
		return domain.Student{}, fromValidation(err), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	if id != "" {
		if idx = s.studentIndex(id); idx < 0 {
			return domain.Student{}, nil, errNotFound
		}
	}
	for i, st := range s.students {
		if i == idx {
			continue
		}
		if st.StudentID == d.StudentID {
			return domain.Student{}, fieldErrors{"student_id": {"student with this student id already exists."}}, nil
		}
		if strings.EqualFold(st.Email, d.Email) {
			return domain.Student{}, fieldErrors{"email": {"student with this email already exists."}}, nil
		}
	}
	st := domain.Student{
		StudentID: d.StudentID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		Email:     d.Email,
	}
	if idx < 0 {
		s.students = append(s.students, st)
	} else {
		old := s.students[idx].StudentID
		s.students[idx] = st
		for _, b := range s.borrows {
			if b.studentID == old {
				b.studentID = st.StudentID
			}
		}
	}
	return st, nil, nil
}

func (s *store) deleteStudent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.studentIndex(id)
	if i < 0 {
		return false
	}
	s.students = append(s.students[:i], s.students[i+1:]...)
	s.cascadeBorrows(func(b *borrow) bool { return b.studentID == id })
	return true
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func (s *store) resourceIndex(id string) int {
	for i, r := range s.resources {
		if r.ResourceID == id {
			return i
		}
	}
	return -1
}

func (s *store) listResources(status, kind string) []domain.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Resource{}
	for _, r := range s.resources {
		if status != "" && string(r.Status) != status {
			continue
		}
		if kind != "" && string(r.ResourceType) != kind {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *store) getResource(id string) (domain.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.resourceIndex(id); i >= 0 {
		return s.resources[i], true
	}
	return domain.Resource{}, false
}

// putResource creates (id == "") or replaces a resource. Status is kept.
func (s *store) putResource(id string, d domain.ResourceDraft) (domain.Resource, fieldErrors, error) {
	if err := domain.Validate(&d); err != nil {
		return domain.Resource{}, fromValidation(err), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	if id != "" {
		if idx = s.resourceIndex(id); idx < 0 {
			return domain.Resource{}, nil, errNotFound
		}
	}
	if j := s.resourceIndex(d.ResourceID); j >= 0 && j != idx {
		return domain.Resource{}, fieldErrors{"resource_id": {"resource with this resource id already exists."}}, nil
	}
	r := domain.Resource{
		ResourceID:      d.ResourceID,
		Title:           d.Title,
		Author:          d.Author,
		ResourceType:    d.ResourceType,
		PublicationYear: d.PublicationYear,
		Status:          domain.StatusAvailable,
	}
	if idx < 0 {
		s.resources = append(s.resources, r)
		return r, nil, nil
	}
	old := s.resources[idx]
	r.Status = old.Status
	s.resources[idx] = r
	for _, b := range s.borrows {
		if b.resourceID == old.ResourceID {
			b.resourceID = r.ResourceID
		}
	}
	return r, nil, nil
}

func (s *store) deleteResource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.resourceIndex(id)
	if i < 0 {
		return false
	}
	s.resources = append(s.resources[:i], s.resources[i+1:]...)
	s.cascadeBorrows(func(b *borrow) bool { return b.resourceID == id })
	return true
}

func (s *store) setResourceStatus(id string, st domain.ResourceStatus) {
	if i := s.resourceIndex(id); i >= 0 {
		s.resources[i].Status = st
	}
}

// ---------------------------------------------------------------------------
// Borrows and returns
// ---------------------------------------------------------------------------

func (s *store) borrowByID(id int64) *borrow {
	for _, b := range s.borrows {
		if b.id == id {
			return b
		}
	}
	return nil
}

// view materializes a borrow with the current student and resource.
func (s *store) view(b *borrow) domain.BorrowRecord {
	rec := domain.BorrowRecord{
		ID:         b.id,
		BorrowID:   b.borrowID,
		BorrowDate: b.borrowDate,
		DueDate:    b.dueDate,
		Status:     b.status,
	}
	if i := s.studentIndex(b.studentID); i >= 0 {
		st := s.students[i]
		rec.Student = &st
	}
	if i := s.resourceIndex(b.resourceID); i >= 0 {
		r := s.resources[i]
		rec.Resource = &r
	}
	return rec
}

func (s *store) listBorrows(status string) []domain.BorrowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.BorrowRecord{}
	for _, b := range s.borrows {
		if status != "" && string(b.status) != status {
			continue
		}
		out = append(out, s.view(b))
	}
	return out
}

func (s *store) getBorrow(id int64) (domain.BorrowRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.borrowByID(id); b != nil {
		return s.view(b), true
	}
	return domain.BorrowRecord{}, false
}

// checkBorrow applies the circulation rules to an active borrow for d,
// ignoring the record self (0 when creating).
func (s *store) checkBorrow(d domain.BorrowDraft, self int64) fieldErrors {
	if s.studentIndex(d.StudentID) < 0 {
		return fieldErrors{"student_id": {"Student not found."}}
	}
	if s.resourceIndex(d.ResourceID) < 0 {
		return fieldErrors{"resource_id": {"Resource not found."}}
	}
	for _, b := range s.borrows {
		if b.id == self || b.status != domain.BorrowActive {
			continue
		}
		if b.resourceID == d.ResourceID {
			return nonField("This resource is already borrowed by another student")
		}
		if b.studentID == d.StudentID {
			return nonField("This student has unreturned books and cannot borrow more")
		}
	}
	return nil
}

func (s *store) createBorrow(d domain.BorrowDraft, today string) (domain.BorrowRecord, fieldErrors) {
	if err := domain.Validate(&d); err != nil {
		return domain.BorrowRecord{}, fromValidation(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fe := s.checkBorrow(d, 0); fe != nil {
		return domain.BorrowRecord{}, fe
	}
	s.nextBorrow++
	b := &borrow{
		id:         s.nextBorrow,
		borrowID:   "BR" + strconv.FormatInt(s.nextBorrow, 10),
		studentID:  d.StudentID,
		resourceID: d.ResourceID,
		borrowDate: today,
		dueDate:    d.DueDate,
		status:     domain.BorrowActive,
	}
	s.borrows = append(s.borrows, b)
	s.setResourceStatus(b.resourceID, domain.StatusBorrowed)
	return s.view(b), nil
}

func (s *store) updateBorrow(id int64, d domain.BorrowDraft) (domain.BorrowRecord, fieldErrors, error) {
	if err := domain.Validate(&d); err != nil {
		return domain.BorrowRecord{}, fromValidation(err), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.borrowByID(id)
	if b == nil {
		return domain.BorrowRecord{}, nil, errNotFound
	}
	if b.status == domain.BorrowActive {
		if fe := s.checkBorrow(d, id); fe != nil {
			return domain.BorrowRecord{}, fe, nil
		}
		if b.resourceID != d.ResourceID {
			s.setResourceStatus(b.resourceID, domain.StatusAvailable)
			s.setResourceStatus(d.ResourceID, domain.StatusBorrowed)
		}
	}
	b.studentID, b.resourceID, b.dueDate = d.StudentID, d.ResourceID, d.DueDate
	return s.view(b), nil, nil
}

func (s *store) deleteBorrow(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.borrows)
	s.cascadeBorrows(func(b *borrow) bool { return b.id == id })
	return len(s.borrows) < n
}

// cascadeBorrows removes matching borrows and their returns, releasing
// resources held by active ones. Caller holds mu.
func (s *store) cascadeBorrows(match func(*borrow) bool) {
	kept := s.borrows[:0]
	gone := map[int64]bool{}
	for _, b := range s.borrows {
		if !match(b) {
			kept = append(kept, b)
			continue
		}
		gone[b.id] = true
		if b.status == domain.BorrowActive {
			s.setResourceStatus(b.resourceID, domain.StatusAvailable)
		}
	}
	s.borrows = kept
	rets := s.returns[:0]
	for _, r := range s.returns {
		if !gone[r.borrowID] {
			rets = append(rets, r)
		}
	}
	s.returns = rets
}

func (s *store) viewReturn(r *returnRow) domain.ReturnRecord {
	rec := domain.ReturnRecord{ID: r.id, ReturnDate: r.date, ConditionNotes: r.notes}
	if b := s.borrowByID(r.borrowID); b != nil {
		v := s.view(b)
		rec.BorrowRecord = &v
	}
	return rec
}

func (s *store) listReturns() []domain.ReturnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReturnRecord, 0, len(s.returns))
	for _, r := range s.returns {
		out = append(out, s.viewReturn(r))
	}
	return out
}

func (s *store) returnByID(id int64) *returnRow {
	for _, r := range s.returns {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (s *store) getReturn(id int64) (domain.ReturnRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.returnByID(id); r != nil {
		return s.viewReturn(r), true
	}
	return domain.ReturnRecord{}, false
}

// createReturn closes an active borrow and frees its resource.
func (s *store) createReturn(d domain.ReturnDraft, today string) (domain.ReturnRecord, fieldErrors) {
	if err := domain.Validate(&d); err != nil {
		return domain.ReturnRecord{}, fromValidation(err)
	}
	bid, err := strconv.ParseInt(d.BorrowRecordID, 10, 64)
	if err != nil {
		return domain.ReturnRecord{}, fieldErrors{"borrow_record_id": {"A valid integer is required."}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.borrowByID(bid)
	if b == nil {
		return domain.ReturnRecord{}, fieldErrors{"borrow_record_id": {"Borrow record not found."}}
	}
	if b.status != domain.BorrowActive {
		return domain.ReturnRecord{}, fieldErrors{"borrow_record_id": {"Borrow record is not active."}}
	}
	b.status = domain.BorrowReturned
	s.setResourceStatus(b.resourceID, domain.StatusAvailable)

	s.nextReturn++
	r := &returnRow{id: s.nextReturn, borrowID: bid, date: today, notes: d.ConditionNotes}
	s.returns = append(s.returns, r)
	return s.viewReturn(r), nil
}

// updateReturn only edits condition notes; the borrow link is fixed.
func (s *store) updateReturn(id int64, d domain.ReturnDraft) (domain.ReturnRecord, fieldErrors, error) {
	if err := domain.Validate(&d); err != nil {
		return domain.ReturnRecord{}, fromValidation(err), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.returnByID(id)
	if r == nil {
		return domain.ReturnRecord{}, nil, errNotFound
	}
	if strconv.FormatInt(r.borrowID, 10) != d.BorrowRecordID {
		return domain.ReturnRecord{}, fieldErrors{"borrow_record_id": {"Borrow record cannot be changed."}}, nil
	}
	r.notes = d.ConditionNotes
	return s.viewReturn(r), nil, nil
}

// deleteReturn reopens the borrow it closed.
func (s *store) deleteReturn(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.returns {
		if r.id != id {
			continue
		}
		s.returns = append(s.returns[:i], s.returns[i+1:]...)
		if b := s.borrowByID(r.borrowID); b != nil && b.status == domain.BorrowReturned {
			b.status = domain.BorrowActive
			s.setResourceStatus(b.resourceID, domain.StatusBorrowed)
		}
		return true
	}
	return false
}
