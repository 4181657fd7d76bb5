package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/repository"
	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

// RateLimitStatus is a snapshot row with its derived headroom.
type RateLimitStatus struct {
	*models.RateLimitRecord
	RemainingPercent float64 `json:"remaining_percent"`
	Severity         string  `json:"severity"`
}

type RateLimitTracker interface {
	Record(ctx context.Context, endpoint, scope, limitHeader, remainingHeader, resetHeader string) error
	ObserveRateLimit(ctx context.Context, endpoint, scope, limit, remaining, reset string)
	Snapshot(ctx context.Context) ([]*RateLimitStatus, error)
}

type rateLimitService struct {
	repo repository.RateLimitRepository
	now  func() time.Time
}

func NewRateLimitService(repo repository.RateLimitRepository) RateLimitTracker {
	return &rateLimitService{repo: repo, now: time.Now}
}

// Record overwrites the snapshot for (endpoint, scope). Responses without quota headers are ignored.
func (s *rateLimitService) Record(ctx context.Context, endpoint, scope, limitHeader, remainingHeader, resetHeader string) error {
	limitHeader = strings.TrimSpace(limitHeader)
	remainingHeader = strings.TrimSpace(remainingHeader)
	if limitHeader == "" || remainingHeader == "" {
		return nil
	}

	limit, err := strconv.Atoi(limitHeader)
	if err != nil {
		return fmt.Errorf("invalid rate limit header %q: %w", limitHeader, err)
	}
	remaining, err := strconv.Atoi(remainingHeader)
	if err != nil {
		return fmt.Errorf("invalid rate remaining header %q: %w", remainingHeader, err)
	}

	now := s.now()
	resetAt := now
	if resetHeader = strings.TrimSpace(resetHeader); resetHeader != "" {
		epoch, err := strconv.ParseInt(resetHeader, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rate reset header %q: %w", resetHeader, err)
		}
		resetAt = time.Unix(epoch, 0)
	}

	rec := &models.RateLimitRecord{
		Endpoint:   endpoint,
		TokenScope: scope,
		Remaining:  remaining,
		LimitTotal: limit,
		ResetAt:    resetAt,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return err
	}

	telemetry.RateLimitRemainingPercent.WithLabelValues(endpoint).Set(rec.RemainingPercent())
	if rec.Severity() == models.RateLimitCritical {
		logger.FromContext(ctx).WithFields(logrus.Fields{
			"endpoint":  endpoint,
			"scope":     scope,
			"remaining": remaining,
			"limit":     limit,
			"reset_at":  resetAt,
		}).Warn("rate limit nearly exhausted")
	}
	return nil
}

// ObserveRateLimit is the hook handed to the X API client. Failures are logged, never returned,
// so bookkeeping cannot fail an upstream call that already happened.
func (s *rateLimitService) ObserveRateLimit(ctx context.Context, endpoint, scope, limit, remaining, reset string) {
	if err := s.Record(ctx, endpoint, scope, limit, remaining, reset); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("endpoint", endpoint).Warn("failed to record rate limit")
	}
}

func (s *rateLimitService) Snapshot(ctx context.Context) ([]*RateLimitStatus, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]*RateLimitStatus, 0, len(records))
	for _, rec := range records {
		statuses = append(statuses, &RateLimitStatus{
			RateLimitRecord:  rec,
			RemainingPercent: rec.RemainingPercent(),
			Severity:         rec.Severity(),
		})
	}
	return statuses, nil
}
