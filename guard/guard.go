// Package guard owns the route table and decides which routes a session may
// enter. Every route except login requires a live, unexpired session.
package guard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"readingroom/domain"
)

// ErrUnauthenticated means the caller was redirected to login.
var ErrUnauthenticated = errors.New("guard: please log in")

// ErrUnknownRoute is returned for a location outside the route table.
var ErrUnknownRoute = errors.New("guard: unknown route")

type Route string

const (
	Login          Route = "/"
	Dashboard      Route = "/dashboard"
	Resources      Route = "/resources"
	Students       Route = "/students"
	Borrow         Route = "/borrow"
	Return         Route = "/return"
	Users          Route = "/users"
	GenerateReport Route = "/generate-report"
)

// AfterLogin is where a successful login lands.
const AfterLogin = Resources

// Routes lists every navigable route in menu order.
var Routes = []Route{Dashboard, Resources, Students, Borrow, Return, Users, GenerateReport}

func (r Route) Known() bool {
	if r == Login {
		return true
	}
	for _, k := range Routes {
		if k == r {
			return true
		}
	}
	return false
}

// Location is a route plus its query parameters.
type Location struct {
	Route Route
	Query url.Values
}

func (l Location) String() string {
	if len(l.Query) == 0 {
		return string(l.Route)
	}
	return string(l.Route) + "?" + l.Query.Encode()
}

// BorrowPrefill reports the student id carried by a /borrow?student_id=... link.
func (l Location) BorrowPrefill() (string, bool) {
	if l.Route != Borrow {
		return "", false
	}
	id := strings.TrimSpace(l.Query.Get("student_id"))
	return id, id != ""
}

// ParseLocation accepts "/borrow?student_id=S1", "borrow" or a full URL.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	p := strings.TrimSuffix(u.Path, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	loc := Location{Route: Route(p), Query: u.Query()}
	if !loc.Route.Known() {
		return Location{}, fmt.Errorf("%w: %s", ErrUnknownRoute, p)
	}
	return loc, nil
}

// SessionSource is the part of the session context the guard reads.
type SessionSource interface {
	Current() (domain.Session, bool)
}

type Guard struct {
	sessions SessionSource
	now      func() time.Time
}

func New(sessions SessionSource) *Guard {
	return &Guard{sessions: sessions, now: time.Now}
}

// Authenticated reports whether a session is present and its token has not
// expired. Tokens without a readable exp are accepted; the server decides.
func (g *Guard) Authenticated() bool {
	sess, ok := g.sessions.Current()
	if !ok || !sess.Valid() {
		return false
	}
	claims, err := ParseClaims(sess.Token)
	if err != nil || claims.ExpiresAt.IsZero() {
		return true
	}
	return g.now().Before(claims.ExpiresAt)
}

// Check returns loc when it may be entered, or the login location and
// ErrUnauthenticated.
func (g *Guard) Check(loc Location) (Location, error) {
	if loc.Route == Login {
		return loc, nil
	}
	if !g.Authenticated() {
		return Location{Route: Login}, ErrUnauthenticated
	}
	return loc, nil
}

// Initial is the landing route at startup.
func (g *Guard) Initial() Route {
	if g.Authenticated() {
		return Dashboard
	}
	return Login
}
