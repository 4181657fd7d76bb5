package job

import (
	"context"

	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

type TokenRefreshJob struct {
	ts service.TokenService
}

func NewTokenRefreshJob(ts service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{ts: ts}
}

func (j *TokenRefreshJob) RefreshTokens() {
	runScheduled(NameTokenRefresh, func(ctx context.Context) error {
		summary, err := j.ts.RefreshExpiring(ctx)
		if err != nil {
			return err
		}
		logSummary(ctx, summary)
		return nil
	})
}

func (j *TokenRefreshJob) CatchUpTokens() {
	runScheduled(NameTokenCatchUp, func(ctx context.Context) error {
		summary, err := j.ts.CatchUpExpired(ctx)
		if err != nil {
			return err
		}
		logSummary(ctx, summary)
		return nil
	})
}

func logSummary(ctx context.Context, s *service.RefreshSummary) {
	logger.FromContext(ctx).WithFields(logrus.Fields{
		"total":   s.Total,
		"success": s.Success,
		"skipped": s.Skipped,
		"failed":  s.Failed,
	}).Info("token refresh batch done")
}
