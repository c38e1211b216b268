package guard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token fields the client reads. The signature is not
// verified here; the server remains the authority.
type Claims struct {
	UserID    int64
	Username  string
	UserLevel string
	ExpiresAt time.Time
}

// ParseClaims decodes an access token without verifying it.
func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	var c Claims
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	switch v := mc["user_id"].(type) {
	case float64:
		c.UserID = int64(v)
	case string:
		c.UserID, _ = strconv.ParseInt(v, 10, 64)
	}
	c.UserLevel, _ = mc["user_level"].(string)
	c.Username, _ = mc["username"].(string)
	return c, nil
}

// Librarian reports whether the level may write (librarian or admin).
func (c Claims) Librarian() bool {
	return c.UserLevel == "librarian" || c.UserLevel == "admin"
}
