package models

import "time"

const (
	LoopTypePost  = "post"
	LoopTypeReply = "reply"
	LoopTypeCTA   = "cta"
)

type Loop struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"user_id"`
	Name                 string     `db:"name" json:"name"`
	LoopType             string     `db:"loop_type" json:"loop_type"`
	IntervalMinutes      int        `db:"interval_minutes" json:"interval_minutes"`
	MinAccounts          int        `db:"min_accounts" json:"min_accounts"`
	MaxAccounts          int        `db:"max_accounts" json:"max_accounts"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	LastRunAt            *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt            *time.Time `db:"next_run_at" json:"next_run_at,omitempty"`
	MonitoredHandle      string     `db:"monitored_handle" json:"monitored_handle,omitempty"`
	LastProcessedTweetID string     `db:"last_processed_tweet_id" json:"last_processed_tweet_id,omitempty"`
	ExecutorAccountID    string     `db:"executor_account_id" json:"executor_account_id,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

func (l *Loop) Interval() time.Duration {
	return time.Duration(l.IntervalMinutes) * time.Minute
}

type TemplateItem struct {
	ID      string `db:"id" json:"id"`
	LoopID  string `db:"loop_id" json:"loop_id"`
	Content string `db:"content" json:"content"`
	Weight  int    `db:"weight" json:"weight"`
}

// LoopLock is an exclusive claim on a loop's execution until LockedUntil.
type LoopLock struct {
	LoopID      string    `db:"loop_id" json:"loop_id"`
	HolderID    string    `db:"holder_id" json:"holder_id"`
	AcquiredAt  time.Time `db:"acquired_at" json:"acquired_at"`
	LockedUntil time.Time `db:"locked_until" json:"locked_until"`
}
