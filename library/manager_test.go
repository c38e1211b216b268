package library

import (
	"context"
	"errors"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/api"
	"readingroom/collection"
	"readingroom/config"
	"readingroom/devserver"
	"readingroom/domain"
	"readingroom/guard"
	"readingroom/report"
)

func newManager(t *testing.T) (*LibraryManager, *devserver.Server) {
	t.Helper()
	dev := devserver.New(devserver.Options{})
	_, err := dev.AddAccount("admin", "admin-pw", "admin")
	require.NoError(t, err)
	require.NoError(t, dev.Seed(
		[]domain.Student{{StudentID: "S1", FirstName: "Ana", LastName: "Lee", Phone: "555", Email: "ana@example.com"}},
		[]domain.Resource{{ResourceID: "R1", Title: "Atlas", Author: "Ortelius", ResourceType: domain.ResourceBook, PublicationYear: 1999}},
	))
	hs := httptest.NewServer(adaptor.FiberApp(dev.App()))
	t.Cleanup(hs.Close)

	cfg := config.Default()
	cfg.APIBaseURL = hs.URL + "/api/"
	cfg.SessionPath = filepath.Join(t.TempDir(), "session.db")
	mgr, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, dev
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	assert.Equal(t, guard.Login, mgr.Guard().Initial())

	profile, err := mgr.Login(ctx, "  admin ", "admin-pw")
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Username)
	assert.Equal(t, "admin", profile.UserLevel)
	assert.NotZero(t, profile.ID)

	stored, ok := mgr.session.store.Get(ctx)
	require.True(t, ok)
	assert.NotEmpty(t, stored.Token)
	assert.Equal(t, "admin", stored.User.Username)
	assert.Equal(t, guard.Dashboard, mgr.Guard().Initial())

	user, ok := mgr.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "admin", user.DisplayName())

	require.NoError(t, mgr.Logout(ctx))
	_, ok = mgr.session.store.Get(ctx)
	assert.False(t, ok)
	_, ok = mgr.CurrentUser()
	assert.False(t, ok)

	_, err = mgr.Navigate("/students")
	assert.ErrorIs(t, err, guard.ErrUnauthenticated)
}

func TestLoginErrors(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.Login(ctx, "", "x")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = mgr.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, ok := mgr.CurrentUser()
	assert.False(t, ok)
}

func TestLogoutClearsLocalSessionWhenServerFails(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, mgr.session.Begin(ctx, domain.Session{Token: "t", Refresh: "bogus", User: domain.Profile{Username: "x"}}))

	err := mgr.Logout(ctx)
	assert.Error(t, err)
	assert.Equal(t, api.KindUnauthorized, api.KindOf(err))
	_, ok := mgr.CurrentUser()
	assert.False(t, ok)
}

func TestCirculationThroughCollections(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	_, err := mgr.Login(ctx, "admin", "admin-pw")
	require.NoError(t, err)

	loc, err := mgr.Navigate("/borrow?student_id=S1&first_name=Ana")
	require.NoError(t, err)
	f, opened := mgr.OpenBorrowFor(loc)
	require.True(t, opened)
	require.NoError(t, f.Edit(func(d *domain.BorrowDraft) { d.ResourceID = "R1"; d.DueDate = "2024-02-01" }))
	_, err = f.Save(ctx)
	require.NoError(t, err)

	require.Len(t, mgr.Borrows.Items(), 1, "borrow list is re-fetched after save")
	require.NoError(t, mgr.Resources.Refresh(ctx))
	r, ok := mgr.Resources.Find("R1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusBorrowed, r.Status)

	require.NoError(t, mgr.ActiveBorrows.Refresh(ctx))
	active := mgr.ActiveBorrows.Items()
	require.Len(t, active, 1)

	_, err = mgr.Returns.Create(ctx, domain.ReturnDraft{BorrowRecordID: active[0].Key()})
	require.NoError(t, err)
	require.NoError(t, mgr.ActiveBorrows.Refresh(ctx))
	assert.Empty(t, mgr.ActiveBorrows.Items())

	counts, err := mgr.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Students)
	assert.Equal(t, 1, counts.Borrows)
	assert.Equal(t, 1, counts.Returns)

	rows, err := mgr.ActivityReport(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, report.TypeBorrow, rows[0].Type)
	assert.Equal(t, report.TypeReturn, rows[1].Type)
	assert.Equal(t, "Ana Lee", rows[1].Name)

	out := filepath.Join(t.TempDir(), "report.pdf")
	n, err := mgr.GenerateReport(ctx, out, report.NewPDFRenderer("Reading Room Report", 25))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = os.Stat(out)
	assert.NoError(t, err)

	require.NoError(t, mgr.Logout(ctx))
	assert.Empty(t, mgr.Borrows.Items(), "collections are dropped on logout")
}

func TestWritesWithoutSessionAreRejected(t *testing.T) {
	mgr, _ := newManager(t)
	_, err := mgr.Students.Create(context.Background(), domain.StudentDraft{StudentID: "S2", FirstName: "B", LastName: "C", Phone: "1", Email: "b@c.d"})

	var f *collection.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "Authentication required: please log in again.", f.Message)
}

func TestRefreshToken(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	assert.ErrorIs(t, mgr.RefreshToken(ctx), ErrNoSession)

	_, err := mgr.Login(ctx, "admin", "admin-pw")
	require.NoError(t, err)
	require.NoError(t, mgr.RefreshToken(ctx))
	assert.NotEmpty(t, mgr.session.Token())
}

func TestStudentQR(t *testing.T) {
	s := domain.Student{StudentID: "S 1/2", FirstName: "Zoë"}
	link := StudentBorrowLink("http://localhost:3000/", s)
	assert.Equal(t, "http://localhost:3000/borrow?first_name=Zo%C3%AB&student_id=S+1%2F2", link)

	loc, err := guard.ParseLocation(link)
	require.NoError(t, err)
	id, ok := loc.BorrowPrefill()
	require.True(t, ok)
	assert.Equal(t, "S 1/2", id)

	path, err := WriteStudentQR(t.TempDir(), "http://localhost:3000", s, 0)
	require.NoError(t, err)
	assert.Equal(t, "student-S_1_2.png", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}
