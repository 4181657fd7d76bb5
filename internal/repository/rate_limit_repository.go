package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type RateLimitRepository interface {
	Upsert(ctx context.Context, rec *models.RateLimitRecord) error
	List(ctx context.Context) ([]*models.RateLimitRecord, error)
}

type rateLimitRepository struct {
	db *sql.DB
}

func NewRateLimitRepository(db *sql.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

// Upsert keeps exactly one snapshot per (endpoint, token_scope).
func (r *rateLimitRepository) Upsert(ctx context.Context, rec *models.RateLimitRecord) error {
	query := `
		INSERT INTO rate_limits (endpoint, token_scope, remaining, limit_total, reset_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint, token_scope) DO UPDATE
		SET remaining = EXCLUDED.remaining,
			limit_total = EXCLUDED.limit_total,
			reset_at = EXCLUDED.reset_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, rec.Endpoint, rec.TokenScope, rec.Remaining, rec.LimitTotal,
		rec.ResetAt, rec.UpdatedAt)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("upsert rate limit")
		return err
	}
	return nil
}

func (r *rateLimitRepository) List(ctx context.Context) ([]*models.RateLimitRecord, error) {
	query := `SELECT endpoint, token_scope, remaining, limit_total, reset_at, updated_at
		FROM rate_limits ORDER BY endpoint, token_scope`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list rate limits")
		return nil, err
	}
	defer rows.Close()

	var records []*models.RateLimitRecord
	for rows.Next() {
		var rec models.RateLimitRecord
		if err := rows.Scan(&rec.Endpoint, &rec.TokenScope, &rec.Remaining, &rec.LimitTotal,
			&rec.ResetAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
