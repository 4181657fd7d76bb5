package xapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	minTimelineResults = 5
	maxTimelineResults = 100
)

// UserTweets returns up to max tweets newer than sinceID, newest first as the API returns them.
func (c *Client) UserTweets(ctx context.Context, userID, sinceID string, max int) ([]Tweet, error) {
	if max < minTimelineResults {
		max = minTimelineResults
	}
	if max > maxTimelineResults {
		max = maxTimelineResults
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(max))
	query.Set("tweet.fields", "created_at,author_id")
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}

	var resp tweetsResponse
	path := "/users/" + url.PathEscape(userID) + "/tweets"
	if err := c.do(ctx, http.MethodGet, "/2/users/:id/tweets", path, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateTweet posts text, as a reply when inReplyTo is set.
func (c *Client) CreateTweet(ctx context.Context, text, inReplyTo string) (*Tweet, error) {
	if text == "" {
		return nil, fmt.Errorf("tweet text is required")
	}

	req := CreateTweetRequest{Text: text}
	if inReplyTo != "" {
		req.Reply = &ReplyParam{InReplyToTweetID: inReplyTo}
	}

	var resp tweetResponse
	if err := c.do(ctx, http.MethodPost, "/2/tweets", "/tweets", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("tweet id missing from response")
	}
	return &resp.Data, nil
}
