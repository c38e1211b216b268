package guard

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/domain"
)

type staticSessions struct {
	sess domain.Session
	ok   bool
}

func (s staticSessions) Current() (domain.Session, bool) { return s.sess, s.ok }

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("/borrow?student_id=S1&first_name=Ana")
	require.NoError(t, err)
	assert.Equal(t, Borrow, loc.Route)
	id, ok := loc.BorrowPrefill()
	assert.True(t, ok)
	assert.Equal(t, "S1", id)

	loc, err = ParseLocation("http://localhost:3000/students/")
	require.NoError(t, err)
	assert.Equal(t, Students, loc.Route)
	_, ok = loc.BorrowPrefill()
	assert.False(t, ok)

	loc, err = ParseLocation("dashboard")
	require.NoError(t, err)
	assert.Equal(t, Dashboard, loc.Route)

	loc, err = ParseLocation("/")
	require.NoError(t, err)
	assert.Equal(t, Login, loc.Route)

	_, err = ParseLocation("/admin")
	assert.ErrorIs(t, err, ErrUnknownRoute)
}

func TestCheckRedirectsWithoutSession(t *testing.T) {
	g := New(staticSessions{})
	for _, r := range Routes {
		got, err := g.Check(Location{Route: r})
		assert.ErrorIs(t, err, ErrUnauthenticated, r)
		assert.Equal(t, Login, got.Route)
	}
	got, err := g.Check(Location{Route: Login})
	require.NoError(t, err)
	assert.Equal(t, Login, got.Route)
	assert.Equal(t, Login, g.Initial())
}

func TestCheckRejectsExpiredToken(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
	g := New(staticSessions{sess: domain.Session{Token: tok}, ok: true})
	_, err := g.Check(Location{Route: Resources})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCheckAllowsLiveSession(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix(), "user_id": 7, "user_level": "librarian"})
	g := New(staticSessions{sess: domain.Session{Token: tok}, ok: true})

	loc := Location{Route: GenerateReport}
	got, err := g.Check(loc)
	require.NoError(t, err)
	assert.Equal(t, loc, got)
	assert.Equal(t, Dashboard, g.Initial())
}

func TestOpaqueTokenCountsAsPresent(t *testing.T) {
	g := New(staticSessions{sess: domain.Session{Token: "not-a-jwt"}, ok: true})
	assert.True(t, g.Authenticated())
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signed(t, jwt.MapClaims{"exp": exp.Unix(), "user_id": 42, "user_level": "admin"})
	c, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 42, c.UserID)
	assert.Equal(t, "admin", c.UserLevel)
	assert.True(t, c.Librarian())
	assert.True(t, exp.Equal(c.ExpiresAt))

	_, err = ParseClaims("garbage")
	assert.Error(t, err)
}
