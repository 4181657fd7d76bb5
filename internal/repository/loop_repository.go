package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

const loopColumns = `id, user_id, name, loop_type, interval_minutes, min_accounts, max_accounts, is_active,
	last_run_at, next_run_at, COALESCE(monitored_handle, ''), COALESCE(last_processed_tweet_id, ''),
	COALESCE(executor_account_id::text, ''), created_at, updated_at`

type LoopRepository interface {
	GetByID(ctx context.Context, id string) (*models.Loop, error)
	ListDue(ctx context.Context, loopTypes []string, now time.Time) ([]*models.Loop, error)
	ListTemplates(ctx context.Context, loopID string) ([]*models.TemplateItem, error)
	ListAccountIDs(ctx context.Context, loopID string) ([]string, error)
	UpdateCursor(ctx context.Context, loopID, tweetID string) error
	MarkRun(ctx context.Context, loopID string, ranAt, nextRunAt time.Time) error
}

type loopRepository struct {
	db *sql.DB
}

func NewLoopRepository(db *sql.DB) LoopRepository {
	return &loopRepository{db: db}
}

func scanLoop(row scanner) (*models.Loop, error) {
	var l models.Loop
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.LoopType, &l.IntervalMinutes, &l.MinAccounts, &l.MaxAccounts,
		&l.IsActive, &l.LastRunAt, &l.NextRunAt, &l.MonitoredHandle, &l.LastProcessedTweetID,
		&l.ExecutorAccountID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loopRepository) GetByID(ctx context.Context, id string) (*models.Loop, error) {
	query := `SELECT ` + loopColumns + ` FROM loops WHERE id = $1`

	l, err := scanLoop(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("get loop")
		return nil, err
	}
	return l, nil
}

func (r *loopRepository) ListDue(ctx context.Context, loopTypes []string, now time.Time) ([]*models.Loop, error) {
	query := `SELECT ` + loopColumns + ` FROM loops
		WHERE is_active = TRUE
			AND loop_type = ANY($1)
			AND (next_run_at IS NULL OR next_run_at <= $2)
		ORDER BY next_run_at NULLS FIRST`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(loopTypes), now)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list due loops")
		return nil, err
	}
	defer rows.Close()

	var loops []*models.Loop
	for rows.Next() {
		l, err := scanLoop(rows)
		if err != nil {
			return nil, err
		}
		loops = append(loops, l)
	}
	return loops, rows.Err()
}

func (r *loopRepository) ListTemplates(ctx context.Context, loopID string) ([]*models.TemplateItem, error) {
	query := `SELECT id, loop_id, content, weight FROM loop_templates WHERE loop_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, loopID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list loop templates")
		return nil, err
	}
	defer rows.Close()

	var items []*models.TemplateItem
	for rows.Next() {
		var item models.TemplateItem
		if err := rows.Scan(&item.ID, &item.LoopID, &item.Content, &item.Weight); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *loopRepository) ListAccountIDs(ctx context.Context, loopID string) ([]string, error) {
	query := `SELECT account_id FROM loop_accounts WHERE loop_id = $1`

	rows, err := r.db.QueryContext(ctx, query, loopID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list loop accounts")
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *loopRepository) UpdateCursor(ctx context.Context, loopID, tweetID string) error {
	query := `UPDATE loops SET last_processed_tweet_id = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, loopID, tweetID); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("update loop cursor")
		return err
	}
	return nil
}

func (r *loopRepository) MarkRun(ctx context.Context, loopID string, ranAt, nextRunAt time.Time) error {
	query := `UPDATE loops SET last_run_at = $2, next_run_at = $3, updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, loopID, ranAt, nextRunAt); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("mark loop run")
		return err
	}
	return nil
}
