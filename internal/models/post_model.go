package models

import "time"

type Post struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	AccountID      string     `db:"account_id" json:"account_id"`
	LoopID         *string    `db:"loop_id" json:"loop_id,omitempty"`
	LoopName       string     `db:"loop_name" json:"loop_name,omitempty"`
	Content        string     `db:"content" json:"content"`
	ContentHash    string     `db:"content_hash" json:"content_hash"`
	InReplyToID    string     `db:"in_reply_to_id" json:"in_reply_to_id,omitempty"`
	Status         string     `db:"status" json:"status"` // scheduled, processing, posted, failed
	ScheduledAt    time.Time  `db:"scheduled_at" json:"scheduled_at"`
	PostedAt       *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	PlatformPostID string     `db:"platform_post_id" json:"platform_post_id,omitempty"`
	FailureKind    string     `db:"failure_kind" json:"failure_kind,omitempty"`
	ErrorMessage   string     `db:"error_message" json:"error_message,omitempty"`
	Attempts       int        `db:"attempts" json:"attempts"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusProcessing = "processing"
	PostStatusPosted     = "posted"
	PostStatusFailed     = "failed"
)

const (
	FailureKindValidation = "validation"
	FailureKindCredential = "credential"
	FailureKindDuplicate  = "duplicate"
	FailureKindPlatform   = "platform"
)

// DuplicateAttempt records a post rejected because its fingerprint was already used.
type DuplicateAttempt struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	AccountID    string    `db:"account_id" json:"account_id"`
	PostID       *string   `db:"post_id" json:"post_id,omitempty"`
	Content      string    `db:"content" json:"content"`
	ContentHash  string    `db:"content_hash" json:"content_hash"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
