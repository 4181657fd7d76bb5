package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

const postColumns = `id, user_id, account_id, loop_id, COALESCE(loop_name, ''), content, content_hash,
	COALESCE(in_reply_to_id, ''), status, scheduled_at, posted_at, COALESCE(platform_post_id, ''),
	COALESCE(failure_kind, ''), COALESCE(error_message, ''), attempts, created_at, updated_at`

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) (string, error)
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.Post, error)
	ListDueByLoop(ctx context.Context, loopID string, now time.Time, limit int) ([]*models.Post, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkPosted(ctx context.Context, id, platformPostID, contentHash string, postedAt time.Time) error
	MarkFailed(ctx context.Context, id, failureKind, reason string) error
	HasRecentFingerprint(ctx context.Context, userID, contentHash, excludePostID string, since time.Time) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func scanPost(row scanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.UserID, &p.AccountID, &p.LoopID, &p.LoopName, &p.Content, &p.ContentHash,
		&p.InReplyToID, &p.Status, &p.ScheduledAt, &p.PostedAt, &p.PlatformPostID,
		&p.FailureKind, &p.ErrorMessage, &p.Attempts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	p, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("get post")
		return nil, err
	}
	return p, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (string, error) {
	query := `
		INSERT INTO posts (user_id, account_id, loop_id, loop_name, content, content_hash, in_reply_to_id,
			status, scheduled_at, posted_at, platform_post_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, $10, NULLIF($11, ''))
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		post.UserID,
		post.AccountID,
		post.LoopID,
		post.LoopName,
		post.Content,
		post.ContentHash,
		post.InReplyToID,
		post.Status,
		post.ScheduledAt,
		post.PostedAt,
		post.PlatformPostID,
	).Scan(&id)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("create post")
		return "", err
	}
	return id, nil
}

// ListDue returns scheduled posts whose time has come plus platform failures still under the attempt cap.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE scheduled_at <= $1
			AND (status = 'scheduled' OR (status = 'failed' AND failure_kind = 'platform' AND attempts < $2))
		ORDER BY scheduled_at
		LIMIT $3`
	return r.list(ctx, query, now, maxAttempts, limit)
}

func (r *postRepository) ListDueByLoop(ctx context.Context, loopID string, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE loop_id = $1 AND status = 'scheduled' AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`
	return r.list(ctx, query, loopID, now, limit)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list posts")
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// MarkProcessing claims a scheduled or failed post. It reports false when the post is
// already processing or posted, which callers treat as a duplicate trigger.
func (r *postRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE posts
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status IN ('scheduled', 'failed')`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("mark post processing")
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkPosted(ctx context.Context, id, platformPostID, contentHash string, postedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = 'posted', platform_post_id = $2, content_hash = $3, posted_at = $4,
			failure_kind = NULL, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = 'processing'`

	result, err := r.db.ExecContext(ctx, query, id, platformPostID, contentHash, postedAt)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("mark post posted")
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

func (r *postRepository) MarkFailed(ctx context.Context, id, failureKind, reason string) error {
	query := `
		UPDATE posts
		SET status = 'failed', failure_kind = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status <> 'posted'`

	if _, err := r.db.ExecContext(ctx, query, id, failureKind, reason); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("mark post failed")
		return err
	}
	return nil
}

// HasRecentFingerprint reports whether another post of the same user with the same hash was
// posted since the given time. Posts still in flight do not count.
func (r *postRepository) HasRecentFingerprint(ctx context.Context, userID, contentHash, excludePostID string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM posts
			WHERE user_id = $1
				AND content_hash = $2
				AND id::text <> $3
				AND status = 'posted'
				AND posted_at >= $4
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, contentHash, excludePostID, since).Scan(&exists); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("check post fingerprint")
		return false, err
	}
	return exists, nil
}
