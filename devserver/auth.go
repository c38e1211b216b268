package devserver

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName is the session cookie set on login and accepted instead of a
// bearer header.
const CookieName = "rr_session"

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"

	localsClaims = "claims"
)

type tokenClaims struct {
	TokenType string `json:"token_type"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	UserLevel string `json:"user_level"`
	jwt.RegisteredClaims
}

func (c tokenClaims) librarian() bool {
	return c.UserLevel == "librarian" || c.UserLevel == "admin"
}

var errTokenInvalid = errors.New("Token is invalid or expired")

func (s *Server) issue(a *account, kind string, ttl time.Duration) (string, error) {
	now := s.opts.Now()
	claims := tokenClaims{
		TokenType: kind,
		UserID:    a.user.ID,
		Username:  a.user.Username,
		UserLevel: a.level,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
}

func (s *Server) parse(raw, kind string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.opts.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.opts.Now),
	)
	if err != nil || claims.TokenType != kind || s.st.isRevoked(claims.ID) {
		return nil, errTokenInvalid
	}
	return claims, nil
}

func rawAccessToken(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Cookies(CookieName)
}

// requireAuth accepts a bearer token or the session cookie. Writes are
// restricted to librarian and admin accounts.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	raw := rawAccessToken(c)
	if raw == "" {
		return detail(c, fiber.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	claims, err := s.parse(raw, tokenAccess)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		})
	}
	if c.Method() != fiber.MethodGet && !claims.librarian() {
		return detail(c, fiber.StatusForbidden, "You do not have permission to perform this action.")
	}
	c.Locals(localsClaims, claims)
	return c.Next()
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return detail(c, fiber.StatusBadRequest, "Malformed request.")
	}
	fe := fieldErrors{}
	if strings.TrimSpace(in.Username) == "" {
		fe.add("username", "This field may not be blank.")
	}
	if in.Password == "" {
		fe.add("password", "This field may not be blank.")
	}
	if len(fe) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fe)
	}
	a, ok := s.st.authenticate(in.Username, in.Password)
	if !ok {
		s.logger.Info("Login rejected", zap.String("username", in.Username))
		return detail(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
	}
	access, err := s.issue(a, tokenAccess, s.opts.AccessTTL)
	if err != nil {
		return err
	}
	refresh, err := s.issue(a, tokenRefresh, s.opts.RefreshTTL)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    access,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  s.opts.Now().Add(s.opts.AccessTTL),
	})
	s.logger.Info("Login", zap.String("username", a.user.Username), zap.String("level", a.level))
	return c.JSON(fiber.Map{"access": access, "refresh": refresh})
}

func (s *Server) refresh(c *fiber.Ctx) error {
	var in refreshBody
	if err := c.BodyParser(&in); err != nil || in.Refresh == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fieldErrors{"refresh": {"This field is required."}})
	}
	claims, err := s.parse(in.Refresh, tokenRefresh)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": err.Error(), "code": "token_not_valid"})
	}
	a := &account{
		user:  s.userOrStub(claims),
		level: claims.UserLevel,
	}
	access, err := s.issue(a, tokenAccess, s.opts.AccessTTL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"access": access})
}

func (s *Server) blacklist(c *fiber.Ctx) error {
	var in refreshBody
	if err := c.BodyParser(&in); err != nil || in.Refresh == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fieldErrors{"refresh": {"This field is required."}})
	}
	claims, err := s.parse(in.Refresh, tokenRefresh)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": err.Error(), "code": "token_not_valid"})
	}
	s.st.revoke(claims.ID)
	c.ClearCookie(CookieName)
	s.logger.Info("Logout", zap.String("username", claims.Username))
	return c.JSON(fiber.Map{})
}
