// Package devserver is an in-memory stand-in for the reading room API. It
// speaks the same JSON contract (trailing-slash REST paths, JWT login,
// refresh and blacklist, DRF-shaped errors) so the client can be exercised
// locally and in tests without the real backend.
package devserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"readingroom/domain"
)

// Options configure a Server. Zero values get development defaults.
type Options struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

type Server struct {
	app    *fiber.App
	st     *store
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("readingroom-dev-secret")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{st: newStore(), opts: opts, logger: opts.Logger}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

// App exposes the fiber app, e.g. for adaptor.FiberApp in tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.ShutdownWithContext(ctx) }

// AddAccount registers a login. level is admin, librarian or student.
func (s *Server) AddAccount(username, password, level string) (domain.User, error) {
	u, fe := s.st.addAccount(domain.UserDraft{
		Username:  username,
		Email:     username + "@readingroom.local",
		FirstName: username,
		LastName:  level,
		Password:  password,
		Password2: password,
	}, level)
	if fe != nil {
		return domain.User{}, errors.New("add account: " + firstMessage(fe))
	}
	return u, nil
}

// Seed loads fixtures directly into the store.
func (s *Server) Seed(students []domain.Student, resources []domain.Resource) error {
	for _, st := range students {
		if _, fe, _ := s.st.putStudent("", domain.StudentToDraft(st)); fe != nil {
			return errors.New("seed student " + st.StudentID + ": " + firstMessage(fe))
		}
	}
	for _, r := range resources {
		if _, fe, _ := s.st.putResource("", domain.ResourceToDraft(r)); fe != nil {
			return errors.New("seed resource " + r.ResourceID + ": " + firstMessage(fe))
		}
	}
	return nil
}

func firstMessage(fe fieldErrors) string {
	for k, msgs := range fe {
		if len(msgs) > 0 {
			return k + ": " + msgs[0]
		}
	}
	return "invalid"
}

func (s *Server) routes() {
	s.app.Use(s.requestLog)

	api := s.app.Group("/api")
	api.Post("/login", s.login)
	api.Post("/token/refresh", s.refresh)
	api.Post("/token/blacklist", s.blacklist)

	api.Use(s.requireAuth)

	api.Get("/students", s.listStudents)
	api.Post("/students", s.createStudent)
	api.Get("/students/:id", s.getStudent)
	api.Put("/students/:id", s.updateStudent)
	api.Delete("/students/:id", s.deleteStudent)

	api.Get("/resources", s.listResources)
	api.Post("/resources", s.createResource)
	api.Get("/resources/:id", s.getResource)
	api.Put("/resources/:id", s.updateResource)
	api.Delete("/resources/:id", s.deleteResource)

	api.Get("/borrows", s.listBorrows)
	api.Post("/borrows", s.createBorrow)
	api.Get("/borrows/:id", s.getBorrow)
	api.Put("/borrows/:id", s.updateBorrow)
	api.Delete("/borrows/:id", s.deleteBorrow)

	api.Get("/returns", s.listReturns)
	api.Post("/returns", s.createReturn)
	api.Get("/returns/:id", s.getReturn)
	api.Put("/returns/:id", s.updateReturn)
	api.Delete("/returns/:id", s.deleteReturn)

	api.Get("/users", s.listUsers)
	api.Post("/users", s.createUser)
	api.Get("/users/:id", s.getUser)
	api.Put("/users/:id", s.updateUser)
	api.Delete("/users/:id", s.deleteUser)
}

// requestLog propagates X-Request-Id and logs each request.
func (s *Server) requestLog(c *fiber.Ctx) error {
	id := c.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("X-Request-Id", id)
	start := time.Now()
	err := c.Next()
	s.logger.Debug("Request",
		zap.String("request_id", id),
		zap.String("method", c.Method()),
		zap.String("path", c.OriginalURL()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return detail(c, fe.Code, fe.Message)
	}
	s.logger.Error("Handler failed", zap.Error(err))
	return detail(c, fiber.StatusInternalServerError, "A server error occurred.")
}

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}

func notFound(c *fiber.Ctx) error { return detail(c, fiber.StatusNotFound, "Not found.") }

func invalid(c *fiber.Ctx, fe fieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fe)
}

func (s *Server) today() string { return s.opts.Now().Format("2006-01-02") }

func intParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil
}

// bind decodes the JSON body into a draft.
func bind[D any](c *fiber.Ctx) (D, error) {
	var d D
	if err := c.BodyParser(&d); err != nil {
		return d, fiber.NewError(fiber.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	return d, nil
}

// written maps a store result onto the response.
func written[T any](c *fiber.Ctx, status int, v T, fe fieldErrors, err error) error {
	switch {
	case errors.Is(err, errNotFound):
		return notFound(c)
	case err != nil:
		return err
	case fe != nil:
		return invalid(c, fe)
	}
	return c.Status(status).JSON(v)
}

func (s *Server) userOrStub(claims *tokenClaims) domain.User {
	if u, ok := s.st.getUser(claims.UserID); ok {
		return u
	}
	return domain.User{ID: claims.UserID, Username: claims.Username}
}

// ---------------------------------------------------------------------------
// Students
// ---------------------------------------------------------------------------

func (s *Server) listStudents(c *fiber.Ctx) error { return c.JSON(s.st.listStudents()) }

func (s *Server) getStudent(c *fiber.Ctx) error {
	st, ok := s.st.getStudent(c.Params("id"))
	if !ok {
		return notFound(c)
	}
	return c.JSON(st)
}

func (s *Server) createStudent(c *fiber.Ctx) error {
	d, err := bind[domain.StudentDraft](c)
	if err != nil {
		return err
	}
	st, fe, err := s.st.putStudent("", d)
	return written(c, fiber.StatusCreated, st, fe, err)
}

func (s *Server) updateStudent(c *fiber.Ctx) error {
	d, err := bind[domain.StudentDraft](c)
	if err != nil {
		return err
	}
	st, fe, err := s.st.putStudent(c.Params("id"), d)
	return written(c, fiber.StatusOK, st, fe, err)
}

func (s *Server) deleteStudent(c *fiber.Ctx) error {
	if !s.st.deleteStudent(c.Params("id")) {
		return notFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

func (s *Server) listResources(c *fiber.Ctx) error {
	return c.JSON(s.st.listResources(c.Query("status"), c.Query("resource_type")))
}

func (s *Server) getResource(c *fiber.Ctx) error {
	r, ok := s.st.getResource(c.Params("id"))
	if !ok {
		return notFound(c)
	}
	return c.JSON(r)
}

func (s *Server) createResource(c *fiber.Ctx) error {
	d, err := bind[domain.ResourceDraft](c)
	if err != nil {
		return err
	}
	r, fe, err := s.st.putResource("", d)
	return written(c, fiber.StatusCreated, r, fe, err)
}

func (s *Server) updateResource(c *fiber.Ctx) error {
	d, err := bind[domain.ResourceDraft](c)
	if err != nil {
		return err
	}
	r, fe, err := s.st.putResource(c.Params("id"), d)
	return written(c, fiber.StatusOK, r, fe, err)
}

func (s *Server) deleteResource(c *fiber.Ctx) error {
	if !s.st.deleteResource(c.Params("id")) {
		return notFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Borrows
// ---------------------------------------------------------------------------

func (s *Server) listBorrows(c *fiber.Ctx) error { return c.JSON(s.st.listBorrows(c.Query("status"))) }

func (s *Server) getBorrow(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok {
		return notFound(c)
	}
	b, ok := s.st.getBorrow(id)
	if !ok {
		return notFound(c)
	}
	return c.JSON(b)
}

func (s *Server) createBorrow(c *fiber.Ctx) error {
	d, err := bind[domain.BorrowDraft](c)
	if err != nil {
		return err
	}
	b, fe := s.st.createBorrow(d, s.today())
	return written(c, fiber.StatusCreated, b, fe, nil)
}

func (s *Server) updateBorrow(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok {
		return notFound(c)
	}
	d, err := bind[domain.BorrowDraft](c)
	if err != nil {
		return err
	}
	b, fe, err := s.st.updateBorrow(id, d)
	return written(c, fiber.StatusOK, b, fe, err)
}

func (s *Server) deleteBorrow(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok || !s.st.deleteBorrow(id) {
		return notFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Returns
// ---------------------------------------------------------------------------

func (s *Server) listReturns(c *fiber.Ctx) error { return c.JSON(s.st.listReturns()) }

func (s *Server) getReturn(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok {
		return notFound(c)
	}
	r, ok := s.st.getReturn(id)
	if !ok {
		return notFound(c)
	}
	return c.JSON(r)
}

func (s *Server) createReturn(c *fiber.Ctx) error {
	d, err := bind[domain.ReturnDraft](c)
	if err != nil {
		return err
	}
	r, fe := s.st.createReturn(d, s.today())
	return written(c, fiber.StatusCreated, r, fe, nil)
}

func (s *Server) updateReturn(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok {
		return notFound(c)
	}
	d, err := bind[domain.ReturnDraft](c)
	if err != nil {
		return err
	}
	r, fe, err := s.st.updateReturn(id, d)
	return written(c, fiber.StatusOK, r, fe, err)
}

func (s *Server) deleteReturn(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok || !s.st.deleteReturn(id) {
		return notFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *Server) listUsers(c *fiber.Ctx) error { return c.JSON(s.st.listUsers()) }

func (s *Server) getUser(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok {
		return notFound(c)
	}
	u, ok := s.st.getUser(id)
	if !ok {
		return notFound(c)
	}
	return c.JSON(u)
}

// createUser registers a librarian account, as the admin screen does.
func (s *Server) createUser(c *fiber.Ctx) error {
	d, err := bind[domain.UserDraft](c)
	if err != nil {
		return err
	}
	u, fe := s.st.addAccount(d, "librarian")
	return written(c, fiber.StatusCreated, u, fe, nil)
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok {
		return notFound(c)
	}
	d, err := bind[domain.UserDraft](c)
	if err != nil {
		return err
	}
	u, fe, err := s.st.updateAccount(id, d)
	return written(c, fiber.StatusOK, u, fe, err)
}

func (s *Server) deleteUser(c *fiber.Ctx) error {
	id, ok := intParam(c)
	if !ok || !s.st.deleteUser(id) {
		return notFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
