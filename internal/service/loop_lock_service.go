package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

const releaseTimeout = 5 * time.Second

// Lease is a held loop lock.
type Lease struct {
	LoopID   string
	HolderID string
}

type LoopLockManager interface {
	// TryAcquire returns a nil lease and nil error when another holder owns an unexpired lock.
	TryAcquire(ctx context.Context, loopID string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
	WithLock(ctx context.Context, loopID string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
	ListActive(ctx context.Context) ([]*models.LoopLock, error)
}

type loopLockService struct {
	repo repository.LoopLockRepository
}

func NewLoopLockService(repo repository.LoopLockRepository) LoopLockManager {
	return &loopLockService{repo: repo}
}

func (s *loopLockService) TryAcquire(ctx context.Context, loopID string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	holderID := uuid.NewString()
	ok, err := s.repo.TryAcquire(ctx, loopID, holderID, ttl)
	if err != nil {
		telemetry.LoopLockAcquireTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		telemetry.LoopLockAcquireTotal.WithLabelValues("contended").Inc()
		return nil, nil
	}

	telemetry.LoopLockAcquireTotal.WithLabelValues("acquired").Inc()
	return &Lease{LoopID: loopID, HolderID: holderID}, nil
}

func (s *loopLockService) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	return s.repo.Release(ctx, lease.LoopID, lease.HolderID)
}

// WithLock runs fn while holding the loop's lock. The lock is released on every exit
// path, including panics, and even when ctx has been cancelled.
func (s *loopLockService) WithLock(ctx context.Context, loopID string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	lease, err := s.TryAcquire(ctx, loopID, ttl)
	if err != nil {
		return false, err
	}
	if lease == nil {
		return false, nil
	}

	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.Release(rctx, lease); err != nil {
			logger.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
				"loop_id":   lease.LoopID,
				"holder_id": lease.HolderID,
			}).Error("failed to release loop lock")
		}
	}()

	return true, fn(ctx)
}

func (s *loopLockService) ListActive(ctx context.Context) ([]*models.LoopLock, error) {
	return s.repo.ListActive(ctx)
}
