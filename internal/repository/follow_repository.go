package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type FollowRepository interface {
	ListDueUnfollows(ctx context.Context, now time.Time, limit int) ([]*models.FollowRecord, error)
	MarkUnfollowed(ctx context.Context, id string, at time.Time) error
	DisableAutoUnfollow(ctx context.Context, id string) error
}

type followRepository struct {
	db *sql.DB
}

func NewFollowRepository(db *sql.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) ListDueUnfollows(ctx context.Context, now time.Time, limit int) ([]*models.FollowRecord, error) {
	query := `
		SELECT id, user_id, account_id, target_user_id, target_username, status, auto_unfollow,
			scheduled_unfollow_at, unfollowed_at, created_at
		FROM follow_history
		WHERE status = 'following' AND auto_unfollow = TRUE AND scheduled_unfollow_at <= $1
		ORDER BY account_id, scheduled_unfollow_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list due unfollows")
		return nil, err
	}
	defer rows.Close()

	var records []*models.FollowRecord
	for rows.Next() {
		var f models.FollowRecord
		if err := rows.Scan(&f.ID, &f.UserID, &f.AccountID, &f.TargetUserID, &f.TargetUsername, &f.Status,
			&f.AutoUnfollow, &f.ScheduledUnfollowAt, &f.UnfollowedAt, &f.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &f)
	}
	return records, rows.Err()
}

// MarkUnfollowed transitions a following record exactly once.
func (r *followRepository) MarkUnfollowed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE follow_history SET status = 'unfollowed', unfollowed_at = $2
		WHERE id = $1 AND status = 'following'`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("mark unfollowed")
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *followRepository) DisableAutoUnfollow(ctx context.Context, id string) error {
	query := `UPDATE follow_history SET auto_unfollow = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("disable auto unfollow")
		return err
	}
	return nil
}
