package job

import (
	"context"

	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

type UnfollowJob struct {
	us service.UnfollowScheduler
}

func NewUnfollowJob(us service.UnfollowScheduler) *UnfollowJob {
	return &UnfollowJob{us: us}
}

func (j *UnfollowJob) RunUnfollows() {
	runScheduled(NameUnfollow, func(ctx context.Context) error {
		summary, err := j.us.Run(ctx)
		if summary != nil && summary.Total > 0 {
			logger.FromContext(ctx).WithFields(logrus.Fields{
				"total":      summary.Total,
				"unfollowed": summary.Unfollowed,
				"skipped":    summary.Skipped,
				"failed":     summary.Failed,
			}).Info("unfollow run done")
		}
		return err
	})
}
