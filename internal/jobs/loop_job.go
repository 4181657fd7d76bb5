package job

import (
	"context"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/pkg/logger"
)

type LoopJob struct {
	lr service.LoopRunner
}

func NewLoopJob(lr service.LoopRunner) *LoopJob {
	return &LoopJob{lr: lr}
}

func (j *LoopJob) RunLoops() {
	runScheduled(NameLoops, func(ctx context.Context) error {
		return j.runDue(ctx, models.LoopTypePost, models.LoopTypeReply)
	})
}

func (j *LoopJob) RunCTALoops() {
	runScheduled(NameCTA, func(ctx context.Context) error {
		return j.runDue(ctx, models.LoopTypeCTA)
	})
}

func (j *LoopJob) runDue(ctx context.Context, types ...string) error {
	results, err := j.lr.RunDueLoops(ctx, types)
	if err != nil {
		return err
	}
	for _, r := range results {
		entry := logger.FromContext(ctx).WithField("loop_id", r.LoopID).WithField("status", r.Status)
		if r.Reason != "" {
			entry = entry.WithField("reason", r.Reason)
		}
		entry.Info("loop run")
	}
	return nil
}
