package job

import (
	"context"

	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

type PostSweepJob struct {
	pe service.PostExecutor
}

func NewPostSweepJob(pe service.PostExecutor) *PostSweepJob {
	return &PostSweepJob{pe: pe}
}

func (j *PostSweepJob) SweepPosts() {
	runScheduled(NamePostSweep, func(ctx context.Context) error {
		summary, err := j.pe.SweepDue(ctx)
		if err != nil {
			return err
		}
		if summary.Total > 0 {
			logger.FromContext(ctx).WithFields(logrus.Fields{
				"total":   summary.Total,
				"posted":  summary.Posted,
				"failed":  summary.Failed,
				"skipped": summary.Skipped,
			}).Info("post sweep done")
		}
		return nil
	})
}
