package xapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Unfollow removes targetUserID from sourceUserID's following list.
func (c *Client) Unfollow(ctx context.Context, sourceUserID, targetUserID string) error {
	if sourceUserID == "" || targetUserID == "" {
		return fmt.Errorf("source and target user ids are required")
	}

	var resp followingResponse
	path := "/users/" + url.PathEscape(sourceUserID) + "/following/" + url.PathEscape(targetUserID)
	if err := c.do(ctx, http.MethodDelete, "/2/users/:id/following/:target_id", path, nil, nil, &resp); err != nil {
		return err
	}
	if resp.Data.Following {
		return fmt.Errorf("still following %s after unfollow", targetUserID)
	}
	return nil
}
