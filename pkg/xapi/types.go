package xapi

import "time"

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Tweet struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	AuthorID  string     `json:"author_id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type userResponse struct {
	Data *User `json:"data"`
}

type tweetsResponse struct {
	Data []Tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id"`
		OldestID    string `json:"oldest_id"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type tweetResponse struct {
	Data Tweet `json:"data"`
}

type CreateTweetRequest struct {
	Text  string      `json:"text"`
	Reply *ReplyParam `json:"reply,omitempty"`
}

type ReplyParam struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type followingResponse struct {
	Data struct {
		Following bool `json:"following"`
	} `json:"data"`
}
