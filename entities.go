package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"readingroom/collection"
	"readingroom/domain"
	"readingroom/form"
	"readingroom/guard"
	"readingroom/library"
)

// entity binds one managed collection to its route, form, prompts and table.
type entity[T, D any] struct {
	use   string
	short string
	route guard.Route
	coll  func(*library.LibraryManager) *collection.Collection[T, D]
	form  func(*library.LibraryManager) *form.Form[T, D]
	fill  func(a *app, d *D) error
	table func(w io.Writer, items []T)
	label func(T) string
}

var students = entity[domain.Student, domain.StudentDraft]{
	use:   "students",
	short: "Manage students",
	route: guard.Students,
	coll:  func(m *library.LibraryManager) *collection.Collection[domain.Student, domain.StudentDraft] { return m.Students },
	form:  (*library.LibraryManager).StudentForm,
	fill:  fillStudent,
	table: printStudents,
	label: func(s domain.Student) string { return s.StudentID + " (" + s.FullName() + ")" },
}

var resources = entity[domain.Resource, domain.ResourceDraft]{
	use:   "resources",
	short: "Manage books, magazines and other resources",
	route: guard.Resources,
	coll:  func(m *library.LibraryManager) *collection.Collection[domain.Resource, domain.ResourceDraft] { return m.Resources },
	form:  (*library.LibraryManager).ResourceForm,
	fill:  fillResource,
	table: printResources,
	label: func(r domain.Resource) string { return r.ResourceID + " (" + r.Title + ")" },
}

var borrows = entity[domain.BorrowRecord, domain.BorrowDraft]{
	use:   "borrow",
	short: "Manage borrow records",
	route: guard.Borrow,
	coll:  func(m *library.LibraryManager) *collection.Collection[domain.BorrowRecord, domain.BorrowDraft] { return m.Borrows },
	form:  (*library.LibraryManager).BorrowForm,
	fill:  fillBorrow,
	table: printBorrows,
	label: func(b domain.BorrowRecord) string { return b.Key() },
}

var returns = entity[domain.ReturnRecord, domain.ReturnDraft]{
	use:   "return",
	short: "Record and list returns",
	route: guard.Return,
	coll:  func(m *library.LibraryManager) *collection.Collection[domain.ReturnRecord, domain.ReturnDraft] { return m.Returns },
	form:  (*library.LibraryManager).ReturnForm,
	fill:  fillReturn,
	table: printReturns,
	label: func(r domain.ReturnRecord) string { return r.Key() },
}

var users = entity[domain.User, domain.UserDraft]{
	use:   "users",
	short: "Manage librarian accounts",
	route: guard.Users,
	coll:  func(m *library.LibraryManager) *collection.Collection[domain.User, domain.UserDraft] { return m.Users },
	form:  (*library.LibraryManager).UserForm,
	fill:  fillUser,
	table: printUsers,
	label: func(u domain.User) string { return u.Username },
}

// command builds "<use> [list|add|edit|delete]". The bare command lists.
func (e entity[T, D]) command(a *app, ops ...string) *cobra.Command {
	var term string
	cmd := &cobra.Command{
		Use:   e.use,
		Short: e.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.list(a, term)
		},
	}
	cmd.Flags().StringVarP(&term, "search", "s", "", "show only matching records")

	var listTerm string
	list := &cobra.Command{
		Use:   "list",
		Short: "List " + e.use,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.list(a, listTerm)
		},
	}
	list.Flags().StringVarP(&listTerm, "search", "s", "", "show only matching records")
	cmd.AddCommand(list)

	for _, op := range ops {
		switch op {
		case "add":
			cmd.AddCommand(&cobra.Command{
				Use:   "add",
				Short: "Add a record",
				Args:  cobra.NoArgs,
				RunE: func(cmd *cobra.Command, args []string) error {
					var seed D
					_, err := e.add(a, seed)
					return err
				},
			})
		case "edit":
			cmd.AddCommand(&cobra.Command{
				Use:   "edit <id>",
				Short: "Edit a record",
				Args:  cobra.ExactArgs(1),
				RunE: func(cmd *cobra.Command, args []string) error {
					_, err := e.edit(a, args[0])
					return err
				},
			})
		case "delete":
			var yes bool
			del := &cobra.Command{
				Use:   "delete <id>",
				Short: "Delete a record",
				Args:  cobra.ExactArgs(1),
				RunE: func(cmd *cobra.Command, args []string) error {
					return e.remove(a, args[0], yes)
				},
			}
			del.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
			cmd.AddCommand(del)
		}
	}
	return cmd
}

func (e entity[T, D]) load(a *app) (*collection.Collection[T, D], error) {
	if _, err := a.enter(string(e.route)); err != nil {
		return nil, err
	}
	c := e.coll(a.mgr)
	if err := c.Refresh(a.ctx); err != nil {
		if len(c.Items()) == 0 {
			return nil, &collection.Failure{Message: c.LastError(), Err: err}
		}
		fmt.Fprintf(a.out, "Warning: %s. Showing the last loaded list.\n", c.LastError())
	}
	return c, nil
}

func (e entity[T, D]) list(a *app, term string) error {
	c, err := e.load(a)
	if err != nil {
		return err
	}
	items := c.Search(term)
	if len(items) == 0 {
		if term != "" {
			fmt.Fprintf(a.out, "No %s found matching '%s'.\n", c.Plural(), term)
		} else {
			fmt.Fprintf(a.out, "No %s yet.\n", c.Plural())
		}
		return nil
	}
	if term != "" {
		fmt.Fprintf(a.out, "Found %d %s matching '%s':\n", len(items), c.Plural(), term)
	}
	e.table(a.out, items)
	return nil
}

func (e entity[T, D]) add(a *app, seed D) (T, error) {
	var zero T
	if _, err := a.enter(string(e.route)); err != nil {
		return zero, err
	}
	f := e.form(a.mgr)
	if err := f.OpenAdd(seed); err != nil {
		return zero, err
	}
	return e.submit(a, f)
}

func (e entity[T, D]) edit(a *app, id string) (T, error) {
	var zero T
	c, err := e.load(a)
	if err != nil {
		return zero, err
	}
	target, ok := c.Find(id)
	if !ok {
		return zero, fmt.Errorf("%s %q not found", c.Noun(), id)
	}
	f := e.form(a.mgr)
	if err := f.OpenEdit(target); err != nil {
		return zero, err
	}
	return e.submit(a, f)
}

// submit prompts for every field of the open form and saves it. A failed
// save closes the form; the command can simply be run again.
func (e entity[T, D]) submit(a *app, f *form.Form[T, D]) (T, error) {
	var zero T
	var fillErr error
	if err := f.Edit(func(d *D) { fillErr = e.fill(a, d) }); err != nil {
		return zero, err
	}
	if fillErr != nil {
		f.Cancel()
		return zero, fillErr
	}
	saved, err := f.Save(a.ctx)
	if err != nil {
		f.Cancel()
		return zero, err
	}
	fmt.Fprintf(a.out, "Saved %s %s\n", e.coll(a.mgr).Noun(), e.label(saved))
	return saved, nil
}

func (e entity[T, D]) remove(a *app, id string, yes bool) error {
	if _, err := a.enter(string(e.route)); err != nil {
		return err
	}
	confirm := a.confirm
	if yes {
		confirm = func(string) bool { return true }
	}
	c := e.coll(a.mgr)
	err := c.Delete(a.ctx, id, confirm)
	if errors.Is(err, collection.ErrNotConfirmed) {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s %s\n", c.Noun(), id)
	return nil
}

// ------------------ Entity-specific commands ------------------

func studentsCmd(a *app) *cobra.Command {
	cmd := students.command(a, "edit", "delete")
	cmd.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add a student and write their borrow QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := students.add(a, domain.StudentDraft{})
			if err != nil {
				return err
			}
			return a.writeQR(s)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "qr <id>",
		Short: "Write the QR code that opens a borrow form for a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := students.load(a)
			if err != nil {
				return err
			}
			s, ok := c.Find(args[0])
			if !ok {
				return fmt.Errorf("student %q not found", args[0])
			}
			return a.writeQR(s)
		},
	})
	return cmd
}

func (a *app) writeQR(s domain.Student) error {
	path, err := library.WriteStudentQR(a.cfg.QRDir, a.cfg.BorrowLinkBase, s, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "QR code for %s written to %s\n", s.FullName(), path)
	fmt.Fprintf(a.out, "Link: %s\n", library.StudentBorrowLink(a.cfg.BorrowLinkBase, s))
	return nil
}

func borrowCmd(a *app) *cobra.Command {
	cmd := borrows.command(a, "edit", "delete")
	var studentID string
	add := &cobra.Command{
		Use:   "add",
		Short: "Lend a resource to a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := borrows.add(a, domain.BorrowDraft{StudentID: studentID})
			return err
		},
	}
	add.Flags().StringVar(&studentID, "student-id", "", "pre-fill the student")
	cmd.AddCommand(add)
	return cmd
}

// ------------------ Prompts ------------------

func fillStudent(a *app, d *domain.StudentDraft) error {
	d.StudentID = a.ask("Student ID", d.StudentID)
	d.FirstName = a.ask("First name", d.FirstName)
	d.LastName = a.ask("Last name", d.LastName)
	d.Phone = a.ask("Phone", d.Phone)
	d.Email = a.ask("Email", d.Email)
	return nil
}

func fillResource(a *app, d *domain.ResourceDraft) error {
	d.ResourceID = a.ask("Resource ID", d.ResourceID)
	d.Title = a.ask("Title", d.Title)
	d.Author = a.ask("Author", d.Author)
	d.ResourceType = domain.ResourceType(a.ask("Type (BOOK, MAGAZINE, NEWSPAPER, OTHER)", string(d.ResourceType)))
	year := ""
	if d.PublicationYear != 0 {
		year = strconv.Itoa(d.PublicationYear)
	}
	year = a.ask("Publication year", year)
	if year == "" {
		d.PublicationYear = 0
		return nil
	}
	n, err := strconv.Atoi(year)
	if err != nil {
		return fmt.Errorf("invalid publication year: %s", year)
	}
	d.PublicationYear = n
	return nil
}

func fillBorrow(a *app, d *domain.BorrowDraft) error {
	d.StudentID = a.ask("Student ID", d.StudentID)
	d.ResourceID = a.ask("Resource ID", d.ResourceID)
	d.DueDate = a.ask("Due date (YYYY-MM-DD)", d.DueDate)
	return nil
}

// fillReturn lists the active borrows first; only those can be returned.
func fillReturn(a *app, d *domain.ReturnDraft) error {
	active := a.mgr.ActiveBorrows
	if err := active.Refresh(a.ctx); err != nil {
		fmt.Fprintf(a.out, "Warning: %s\n", active.LastError())
	}
	if items := active.Items(); len(items) == 0 {
		fmt.Fprintln(a.out, "No active borrows.")
	} else {
		fmt.Fprintln(a.out, "Active borrows:")
		printBorrows(a.out, items)
	}
	d.BorrowRecordID = a.ask("Borrow record ID", d.BorrowRecordID)
	d.ConditionNotes = a.ask("Condition notes (optional)", d.ConditionNotes)
	return nil
}

func fillUser(a *app, d *domain.UserDraft) error {
	d.Username = a.ask("Username", d.Username)
	d.Email = a.ask("Email", d.Email)
	d.FirstName = a.ask("First name", d.FirstName)
	d.LastName = a.ask("Last name", d.LastName)
	pw, err := a.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	pw2, err := a.readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	d.Password, d.Password2 = pw, pw2
	return nil
}

// ------------------ Tables ------------------

func printStudents(w io.Writer, items []domain.Student) {
	fmt.Fprintf(w, "%-12s %-25s %-15s %-30s\n", "ID", "Name", "Phone", "Email")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, s := range items {
		fmt.Fprintf(w, "%-12s %-25s %-15s %-30s\n",
			truncateString(s.StudentID, 12),
			truncateString(s.FullName(), 25),
			truncateString(s.Phone, 15),
			truncateString(s.Email, 30))
	}
}

func printResources(w io.Writer, items []domain.Resource) {
	fmt.Fprintf(w, "%-10s %-30s %-25s %-10s %-5s %-10s\n", "ID", "Title", "Author", "Type", "Year", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 95))
	for _, r := range items {
		fmt.Fprintf(w, "%-10s %-30s %-25s %-10s %-5d %-10s\n",
			truncateString(r.ResourceID, 10),
			truncateString(r.Title, 30),
			truncateString(r.Author, 25),
			r.ResourceType,
			r.PublicationYear,
			r.Status)
	}
}

func studentOf(b *domain.BorrowRecord) (id, name string) {
	if b == nil || b.Student == nil {
		return "", ""
	}
	return b.Student.StudentID, b.Student.FullName()
}

func resourceOf(b *domain.BorrowRecord) (id, title string) {
	if b == nil || b.Resource == nil {
		return "", ""
	}
	return b.Resource.ResourceID, b.Resource.Title
}

func printBorrows(w io.Writer, items []domain.BorrowRecord) {
	fmt.Fprintf(w, "%-5s %-25s %-30s %-11s %-11s %-9s\n", "ID", "Student", "Resource", "Borrowed", "Due", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for i := range items {
		b := &items[i]
		_, name := studentOf(b)
		_, title := resourceOf(b)
		fmt.Fprintf(w, "%-5s %-25s %-30s %-11s %-11s %-9s\n",
			b.Key(),
			truncateString(name, 25),
			truncateString(title, 30),
			b.BorrowDate,
			b.DueDate,
			b.Status)
	}
}

func printReturns(w io.Writer, items []domain.ReturnRecord) {
	fmt.Fprintf(w, "%-5s %-11s %-12s %-25s %-30s %s\n", "ID", "Returned", "Student ID", "Student", "Resource", "Notes")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range items {
		sid, name := studentOf(r.BorrowRecord)
		_, title := resourceOf(r.BorrowRecord)
		fmt.Fprintf(w, "%-5s %-11s %-12s %-25s %-30s %s\n",
			r.Key(),
			r.ReturnDate,
			truncateString(sid, 12),
			truncateString(name, 25),
			truncateString(title, 30),
			r.ConditionNotes)
	}
}

func printUsers(w io.Writer, items []domain.User) {
	fmt.Fprintf(w, "%-5s %-20s %-25s %-30s\n", "ID", "Username", "Name", "Email")
	fmt.Fprintln(w, strings.Repeat("-", 83))
	for _, u := range items {
		fmt.Fprintf(w, "%-5d %-20s %-25s %-30s\n",
			u.ID,
			truncateString(u.Username, 20),
			truncateString(u.FirstName+" "+u.LastName, 25),
			truncateString(u.Email, 30))
	}
}
