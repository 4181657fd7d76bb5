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

const accountTokenColumns = `id, user_id, username, platform_user_id, token_kind, access_token,
	COALESCE(access_token_secret, ''), COALESCE(refresh_token, ''), expires_at, is_active, is_suspended,
	COALESCE(suspended_reason, ''), refresh_count, last_refreshed_at, COALESCE(last_error, ''),
	app_credential_id, created_at, updated_at`

type AccountTokenRepository interface {
	GetByID(ctx context.Context, id string) (*models.AccountToken, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.AccountToken, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.AccountToken, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.AccountToken, error)
	SetRefreshed(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
	MarkRefreshFailed(ctx context.Context, id, reason string) error
	RecordError(ctx context.Context, id, reason string) error
	MarkSuspended(ctx context.Context, id, reason string) error
}

type accountTokenRepository struct {
	db *sql.DB
}

func NewAccountTokenRepository(db *sql.DB) AccountTokenRepository {
	return &accountTokenRepository{db: db}
}

func scanAccountToken(row scanner) (*models.AccountToken, error) {
	var t models.AccountToken
	err := row.Scan(&t.ID, &t.UserID, &t.Username, &t.PlatformUserID, &t.TokenKind, &t.AccessToken,
		&t.AccessTokenSecret, &t.RefreshToken, &t.ExpiresAt, &t.IsActive, &t.IsSuspended,
		&t.SuspendedReason, &t.RefreshCount, &t.LastRefreshedAt, &t.LastError,
		&t.AppCredentialID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *accountTokenRepository) GetByID(ctx context.Context, id string) (*models.AccountToken, error) {
	query := `SELECT ` + accountTokenColumns + ` FROM account_tokens WHERE id = $1`

	t, err := scanAccountToken(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("get account token")
		return nil, err
	}
	return t, nil
}

func (r *accountTokenRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.AccountToken, error) {
	query := `SELECT ` + accountTokenColumns + ` FROM account_tokens WHERE id = ANY($1)`
	return r.list(ctx, query, pq.Array(ids))
}

// ListExpiring returns active, unsuspended oauth2 tokens with a refresh secret expiring before the given time.
func (r *accountTokenRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.AccountToken, error) {
	query := `SELECT ` + accountTokenColumns + ` FROM account_tokens
		WHERE token_kind = 'oauth2'
			AND is_active = TRUE
			AND is_suspended = FALSE
			AND COALESCE(refresh_token, '') <> ''
			AND expires_at < $1
		ORDER BY expires_at`
	return r.list(ctx, query, before)
}

// ListExpired returns unsuspended oauth2 tokens already past expiry, including ones deactivated by a failed refresh.
func (r *accountTokenRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.AccountToken, error) {
	query := `SELECT ` + accountTokenColumns + ` FROM account_tokens
		WHERE token_kind = 'oauth2'
			AND is_suspended = FALSE
			AND COALESCE(refresh_token, '') <> ''
			AND expires_at < $1
		ORDER BY expires_at`
	return r.list(ctx, query, now)
}

func (r *accountTokenRepository) list(ctx context.Context, query string, args ...any) ([]*models.AccountToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list account tokens")
		return nil, err
	}
	defer rows.Close()

	var tokens []*models.AccountToken
	for rows.Next() {
		t, err := scanAccountToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *accountTokenRepository) SetRefreshed(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE account_tokens
		SET
			access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			expires_at = $4,
			is_active = TRUE,
			last_error = NULL,
			refresh_count = refresh_count + 1,
			last_refreshed_at = now(),
			updated_at = now()
		WHERE id = $1 AND is_suspended = FALSE`

	result, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("set refreshed token")
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

func (r *accountTokenRepository) MarkRefreshFailed(ctx context.Context, id, reason string) error {
	query := `UPDATE account_tokens SET is_active = FALSE, last_error = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, reason)
}

func (r *accountTokenRepository) RecordError(ctx context.Context, id, reason string) error {
	query := `UPDATE account_tokens SET last_error = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, reason)
}

func (r *accountTokenRepository) MarkSuspended(ctx context.Context, id, reason string) error {
	query := `
		UPDATE account_tokens
		SET is_suspended = TRUE, is_active = FALSE, suspended_reason = $2, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, query, id, reason)
}

func (r *accountTokenRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("update account token")
		return err
	}
	return nil
}
