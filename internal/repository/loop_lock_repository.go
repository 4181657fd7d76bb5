package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type LoopLockRepository interface {
	TryAcquire(ctx context.Context, loopID, holderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, loopID, holderID string) error
	ListActive(ctx context.Context) ([]*models.LoopLock, error)
}

type loopLockRepository struct {
	db *sql.DB
}

func NewLoopLockRepository(db *sql.DB) LoopLockRepository {
	return &loopLockRepository{db: db}
}

// TryAcquire inserts the lock row, or takes over a row whose TTL has passed, in one statement.
// A live lock held by someone else makes the conditional update match nothing and no row is returned.
func (r *loopLockRepository) TryAcquire(ctx context.Context, loopID, holderID string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO loop_locks (loop_id, holder_id, acquired_at, locked_until)
		VALUES ($1, $2, now(), now() + make_interval(secs => $3))
		ON CONFLICT (loop_id) DO UPDATE
		SET holder_id = EXCLUDED.holder_id,
			acquired_at = EXCLUDED.acquired_at,
			locked_until = EXCLUDED.locked_until
		WHERE loop_locks.locked_until <= now()
		RETURNING holder_id`

	var holder string
	err := r.db.QueryRowContext(ctx, query, loopID, holderID, ttl.Seconds()).Scan(&holder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("acquire loop lock")
		return false, err
	}
	return holder == holderID, nil
}

// Release deletes the lock only if it is still held by holderID.
func (r *loopLockRepository) Release(ctx context.Context, loopID, holderID string) error {
	query := `DELETE FROM loop_locks WHERE loop_id = $1 AND holder_id = $2`
	if _, err := r.db.ExecContext(ctx, query, loopID, holderID); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("release loop lock")
		return err
	}
	return nil
}

func (r *loopLockRepository) ListActive(ctx context.Context) ([]*models.LoopLock, error) {
	query := `SELECT loop_id, holder_id, acquired_at, locked_until FROM active_loop_locks ORDER BY acquired_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("list active loop locks")
		return nil, err
	}
	defer rows.Close()

	var locks []*models.LoopLock
	for rows.Next() {
		var l models.LoopLock
		if err := rows.Scan(&l.LoopID, &l.HolderID, &l.AcquiredAt, &l.LockedUntil); err != nil {
			return nil, err
		}
		locks = append(locks, &l)
	}
	return locks, rows.Err()
}
