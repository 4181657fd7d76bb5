package models

import "time"

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	NotificationError   = "error"
	NotificationWarning = "warning"
	NotificationSuccess = "success"
	NotificationInfo    = "info"
)

const (
	CategoryTokenRefresh    = "token_refresh"
	CategoryTokenValidation = "token_validation"
	CategoryPost            = "post"
	CategoryUnfollow        = "unfollow"
	CategoryCTA             = "cta"
)

type Notification struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Title     string         `db:"title" json:"title"`
	Message   string         `db:"message" json:"message"`
	Type      string         `db:"type" json:"type"`
	Priority  string         `db:"priority" json:"priority"`
	Category  string         `db:"category" json:"category"`
	Metadata  map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
