package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Login authenticates against the backend and returns the user id. The
// endpoint takes form parameters and answers with a plain-text body.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	data, err := c.request(ctx, http.MethodPost, "/users/login",
		"application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Register creates an account and returns the new user id.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("email", email)
	form.Set("password", password)

	data, err := c.request(ctx, http.MethodPost, "/users/register",
		"application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
