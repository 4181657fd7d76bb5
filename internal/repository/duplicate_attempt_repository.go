package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type DuplicateAttemptRepository interface {
	Create(ctx context.Context, attempt *models.DuplicateAttempt) (string, error)
	ListRecent(ctx context.Context, userID string, since time.Time) ([]*models.DuplicateAttempt, error)
}

type duplicateAttemptRepository struct {
	db *sql.DB
}

func NewDuplicateAttemptRepository(db *sql.DB) DuplicateAttemptRepository {
	return &duplicateAttemptRepository{db: db}
}

func (r *duplicateAttemptRepository) Create(ctx context.Context, attempt *models.DuplicateAttempt) (string, error) {
	query := `
		INSERT INTO duplicate_attempts (user_id, account_id, post_id, content, content_hash, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		attempt.UserID,
		attempt.AccountID,
		attempt.PostID,
		attempt.Content,
		attempt.ContentHash,
		attempt.ErrorMessage,
	).Scan(&id)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("create duplicate attempt")
		return "", err
	}
	return id, nil
}

// ListRecent returns attempts since the given time, newest first. An empty userID lists every user.
func (r *duplicateAttemptRepository) ListRecent(ctx context.Context, userID string, since time.Time) ([]*models.DuplicateAttempt, error) {
	query := `
		SELECT id, user_id, account_id, post_id, content, content_hash, error_message, created_at
		FROM duplicate_attempts
		WHERE created_at >= $1 AND ($2 = '' OR user_id::text = $2)
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, since, userID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list duplicate attempts")
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.DuplicateAttempt
	for rows.Next() {
		var a models.DuplicateAttempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountID, &a.PostID, &a.Content, &a.ContentHash,
			&a.ErrorMessage, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
