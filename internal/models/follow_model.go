package models

import "time"

const (
	FollowStatusFollowing  = "following"
	FollowStatusUnfollowed = "unfollowed"
)

type FollowRecord struct {
	ID                  string     `db:"id" json:"id"`
	UserID              string     `db:"user_id" json:"user_id"`
	AccountID           string     `db:"account_id" json:"account_id"`
	TargetUserID        string     `db:"target_user_id" json:"target_user_id"`
	TargetUsername      string     `db:"target_username" json:"target_username"`
	Status              string     `db:"status" json:"status"`
	AutoUnfollow        bool       `db:"auto_unfollow" json:"auto_unfollow"`
	ScheduledUnfollowAt *time.Time `db:"scheduled_unfollow_at" json:"scheduled_unfollow_at,omitempty"`
	UnfollowedAt        *time.Time `db:"unfollowed_at" json:"unfollowed_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}
