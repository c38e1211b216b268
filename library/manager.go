package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"readingroom/api"
	"readingroom/collection"
	"readingroom/config"
	"readingroom/dashboard"
	"readingroom/domain"
	"readingroom/form"
	"readingroom/guard"
	"readingroom/report"
	"readingroom/search"
)

var (
	// ErrNoSession is returned by operations that need a logged-in user.
	ErrNoSession = errors.New("library: not logged in")
	// ErrMissingCredentials is returned by Login before any request is made.
	ErrMissingCredentials = errors.New("Please enter username and password")
	// ErrInvalidCredentials is shown when the server rejects a login.
	ErrInvalidCredentials = errors.New("Invalid login credentials!")
	// ErrReportFetch is the only error ActivityReport reports.
	ErrReportFetch = errors.New("Failed to fetch report data")
)

// LibraryManager is a thin façade over the API client, the session and the
// per-entity collections, keeping CLI code simple.
type LibraryManager struct {
	client  *api.Client
	session *SessionContext
	guard   *guard.Guard
	logger  *zap.Logger

	Students  *collection.Collection[domain.Student, domain.StudentDraft]
	Resources *collection.Collection[domain.Resource, domain.ResourceDraft]
	Borrows   *collection.Collection[domain.BorrowRecord, domain.BorrowDraft]
	Returns   *collection.Collection[domain.ReturnRecord, domain.ReturnDraft]
	Users     *collection.Collection[domain.User, domain.UserDraft]
	// ActiveBorrows lists only ACTIVE borrows, the choices on the return screen.
	ActiveBorrows *collection.Collection[domain.BorrowRecord, domain.BorrowDraft]
}

// NewLibraryManager wires collections onto client. The client should take
// its bearer token from session.
func NewLibraryManager(client *api.Client, session *SessionContext, logger *zap.Logger) *LibraryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	lm := &LibraryManager{
		client:  client,
		session: session,
		guard:   guard.New(session),
		logger:  logger,

		Students: collection.New[domain.Student, domain.StudentDraft](api.Students(client), collection.Config[domain.Student]{
			Noun: "student", Plural: "students",
			Key:    func(s domain.Student) string { return s.StudentID },
			Fields: search.StudentFields,
		}, logger),
		Resources: collection.New[domain.Resource, domain.ResourceDraft](api.Resources(client), collection.Config[domain.Resource]{
			Noun: "resource", Plural: "resources",
			Key:    func(r domain.Resource) string { return r.ResourceID },
			Fields: search.ResourceFields,
		}, logger),
		Borrows: collection.New[domain.BorrowRecord, domain.BorrowDraft](api.Borrows(client), collection.Config[domain.BorrowRecord]{
			Noun: "borrow record", Plural: "borrow records",
			Key:    domain.BorrowRecord.Key,
			Fields: search.BorrowFields,
		}, logger),
		Returns: collection.New[domain.ReturnRecord, domain.ReturnDraft](api.Returns(client), collection.Config[domain.ReturnRecord]{
			Noun: "return record", Plural: "return records",
			Key:    domain.ReturnRecord.Key,
			Fields: search.ReturnFields,
		}, logger),
		Users: collection.New[domain.User, domain.UserDraft](api.Users(client), collection.Config[domain.User]{
			Noun: "user", Plural: "users",
			Key:    domain.User.Key,
			Fields: search.UserFields,
		}, logger),
		ActiveBorrows: collection.New[domain.BorrowRecord, domain.BorrowDraft](api.Borrows(client), collection.Config[domain.BorrowRecord]{
			Noun: "borrow record", Plural: "borrow records",
			Key:    domain.BorrowRecord.Key,
			Fields: search.BorrowFields,
			Params: url.Values{"status": {string(domain.BorrowActive)}},
		}, logger),
	}
	session.Subscribe(func(_ domain.Session, live bool) {
		if !live {
			lm.reset()
		}
	})
	return lm
}

// Open builds the session store, session context, API client and manager
// described by cfg, and restores any persisted session.
func Open(ctx context.Context, cfg config.FileConfig, logger *zap.Logger) (*LibraryManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var store SessionStore
	switch cfg.SessionBackend {
	case config.BackendRedis:
		store = NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix, logger)
	default:
		s, err := NewSQLiteSessionStore(cfg.SessionPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		store = s
	}
	session := NewSessionContext(store, logger)
	client, err := api.New(cfg.APIBaseURL,
		api.WithTokenSource(session),
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second}),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	session.Init(ctx)
	return NewLibraryManager(client, session, logger), nil
}

// Close releases the session store.
func (lm *LibraryManager) Close() error { return lm.session.store.Close() }

func (lm *LibraryManager) Session() *SessionContext { return lm.session }
func (lm *LibraryManager) Guard() *guard.Guard      { return lm.guard }
func (lm *LibraryManager) Client() *api.Client      { return lm.client }

func (lm *LibraryManager) reset() {
	lm.Students.Reset()
	lm.Resources.Reset()
	lm.Borrows.Reset()
	lm.Returns.Reset()
	lm.Users.Reset()
	lm.ActiveBorrows.Reset()
}

// ------------------ Session ------------------

// Login authenticates and persists the new session. The profile comes from
// the login response when the server sends one, else from token claims.
func (lm *LibraryManager) Login(ctx context.Context, username, password string) (domain.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Profile{}, ErrMissingCredentials
	}
	resp, err := lm.client.Login(ctx, username, password)
	if err != nil {
		lm.logger.Info("Login failed", zap.String("username", username), zap.Error(err))
		switch api.KindOf(err) {
		case api.KindUnauthorized, api.KindValidation, api.KindForbidden:
			return domain.Profile{}, ErrInvalidCredentials
		}
		return domain.Profile{}, fmt.Errorf("login: %w", err)
	}
	if resp.Access == "" {
		return domain.Profile{}, fmt.Errorf("login: server returned no access token")
	}

	profile := domain.Profile{Username: username}
	if resp.User != nil {
		profile = *resp.User
	}
	if claims, err := guard.ParseClaims(resp.Access); err == nil {
		if profile.ID == 0 {
			profile.ID = claims.UserID
		}
		if profile.UserLevel == "" {
			profile.UserLevel = claims.UserLevel
		}
	}
	if err := lm.session.Begin(ctx, domain.Session{Token: resp.Access, Refresh: resp.Refresh, User: profile}); err != nil {
		return domain.Profile{}, err
	}
	lm.logger.Info("Logged in", zap.String("username", profile.Username), zap.String("level", profile.UserLevel))
	return profile, nil
}

// Logout blacklists the refresh token and clears the local session. The
// local session is cleared even when the server call fails.
func (lm *LibraryManager) Logout(ctx context.Context) error {
	sess, ok := lm.session.Current()
	var remote error
	if ok && sess.Refresh != "" {
		if err := lm.client.Logout(ctx, sess.Refresh); err != nil {
			lm.logger.Warn("Token blacklist failed", zap.Error(err))
			remote = fmt.Errorf("logout: %w", err)
		}
	}
	if err := lm.session.End(ctx); err != nil {
		return errors.Join(remote, err)
	}
	return remote
}

// RefreshToken trades the stored refresh token for a new access token.
func (lm *LibraryManager) RefreshToken(ctx context.Context) error {
	sess, ok := lm.session.Current()
	if !ok || sess.Refresh == "" {
		return ErrNoSession
	}
	access, err := lm.client.Refresh(ctx, sess.Refresh)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	return lm.session.UpdateToken(ctx, access)
}

// CurrentUser returns the cached profile of the logged-in account.
func (lm *LibraryManager) CurrentUser() (domain.Profile, bool) {
	sess, ok := lm.session.Current()
	if !ok {
		return domain.Profile{}, false
	}
	return sess.User, true
}

// Navigate parses a location and runs it through the guard.
func (lm *LibraryManager) Navigate(raw string) (guard.Location, error) {
	loc, err := guard.ParseLocation(raw)
	if err != nil {
		return guard.Location{}, err
	}
	return lm.guard.Check(loc)
}

// ------------------ Dashboard & report ------------------

func (lm *LibraryManager) Dashboard(ctx context.Context) (dashboard.Counts, error) {
	return dashboard.Load(ctx, dashboard.Sources{
		Students:  dashboard.Count[domain.Student](api.Students(lm.client)),
		Resources: dashboard.Count[domain.Resource](api.Resources(lm.client)),
		Borrows:   dashboard.Count[domain.BorrowRecord](api.Borrows(lm.client)),
		Returns:   dashboard.Count[domain.ReturnRecord](api.Returns(lm.client)),
	}, lm.logger)
}

// ActivityReport fetches borrows and returns concurrently and composes the
// report rows. Either failure fails the whole report.
func (lm *LibraryManager) ActivityReport(ctx context.Context) ([]report.Row, error) {
	var (
		borrows []domain.BorrowRecord
		returns []domain.ReturnRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		borrows, err = api.Borrows(lm.client).GetAll(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		returns, err = api.Returns(lm.client).GetAll(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		lm.logger.Warn("Report fetch failed", zap.Error(err))
		return nil, ErrReportFetch
	}
	return report.Compose(borrows, returns), nil
}

// GenerateReport writes the activity report to path and returns the row count.
func (lm *LibraryManager) GenerateReport(ctx context.Context, path string, r report.Renderer) (int, error) {
	rows, err := lm.ActivityReport(ctx)
	if err != nil {
		return 0, err
	}
	if err := report.WriteFile(path, rows, r); err != nil {
		return 0, err
	}
	lm.logger.Info("Report written", zap.String("path", path), zap.Int("rows", len(rows)))
	return len(rows), nil
}

// ------------------ Forms ------------------

func (lm *LibraryManager) StudentForm() *form.Form[domain.Student, domain.StudentDraft] {
	return form.New[domain.Student, domain.StudentDraft](lm.Students, domain.StudentToDraft, func(s domain.Student) string { return s.StudentID })
}

func (lm *LibraryManager) ResourceForm() *form.Form[domain.Resource, domain.ResourceDraft] {
	return form.New[domain.Resource, domain.ResourceDraft](lm.Resources, domain.ResourceToDraft, func(r domain.Resource) string { return r.ResourceID })
}

func (lm *LibraryManager) BorrowForm() *form.Form[domain.BorrowRecord, domain.BorrowDraft] {
	return form.New[domain.BorrowRecord, domain.BorrowDraft](lm.Borrows, domain.BorrowToDraft, domain.BorrowRecord.Key)
}

func (lm *LibraryManager) ReturnForm() *form.Form[domain.ReturnRecord, domain.ReturnDraft] {
	return form.New[domain.ReturnRecord, domain.ReturnDraft](lm.Returns, domain.ReturnToDraft, domain.ReturnRecord.Key)
}

func (lm *LibraryManager) UserForm() *form.Form[domain.User, domain.UserDraft] {
	return form.New[domain.User, domain.UserDraft](lm.Users, domain.UserToDraft, domain.User.Key)
}

// OpenBorrowFor returns a borrow form already open in add mode when loc is a
// /borrow link carrying student_id; otherwise a closed form and false.
func (lm *LibraryManager) OpenBorrowFor(loc guard.Location) (*form.Form[domain.BorrowRecord, domain.BorrowDraft], bool) {
	f := lm.BorrowForm()
	id, ok := loc.BorrowPrefill()
	if !ok {
		return f, false
	}
	_ = f.OpenAdd(domain.BorrowDraft{StudentID: id})
	return f, true
}
