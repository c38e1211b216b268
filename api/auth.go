package api

import (
	"context"
	"net/http"

	"readingroom/domain"
)

// LoginResponse is the token pair issued by login/. Some deployments also
// return the account profile.
type LoginResponse struct {
	Access  string          `json:"access"`
	Refresh string          `json:"refresh"`
	User    *domain.Profile `json:"user,omitempty"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.call(ctx, http.MethodPost, path("login"), nil, credentials{Username: username, Password: password}, &out)
	return out, err
}

// Refresh trades a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refresh string) (string, error) {
	var out struct {
		Access string `json:"access"`
	}
	if err := c.call(ctx, http.MethodPost, path("token", "refresh"), nil, refreshBody{Refresh: refresh}, &out); err != nil {
		return "", err
	}
	return out.Access, nil
}

// Logout blacklists the refresh token on the server.
func (c *Client) Logout(ctx context.Context, refresh string) error {
	return c.call(ctx, http.MethodPost, path("token", "blacklist"), nil, refreshBody{Refresh: refresh}, nil)
}
