package xapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/2/users/me", "/users/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("empty user in response")
	}
	return resp.Data, nil
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	var resp userResponse
	path := "/users/by/username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, "/2/users/by/username/:username", path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("user %q not found", username)
	}
	return resp.Data, nil
}
