package apiclient

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a bearer token. The call itself is sent
// unauthenticated; the returned token is not stored here.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Token, error) {
	var token Token
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Register creates a new account. The API returns the created identity but
// no token; callers log in separately.
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser fetches the identity behind the attached bearer token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
