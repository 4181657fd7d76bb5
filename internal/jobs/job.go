package job

import (
	"context"
	"time"

	"github.com/maheshrc27/xpilot/internal/telemetry"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
)

const (
	NameTokenRefresh = "token_refresh"
	NameTokenCatchUp = "token_catch_up"
	NameTokenCheck   = "token_validate"
	NamePostSweep    = "post_sweep"
	NamePostExecute  = "post_execute"
	NameLoops        = "loops"
	NameCTA          = "cta"
	NameUnfollow     = "unfollow"
)

// Track runs fn as one job invocation, recording duration and outcome.
func Track(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx).WithField("job", name)
	start := time.Now()

	err := fn(ctx)

	elapsed := time.Since(start)
	telemetry.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		telemetry.JobRunsTotal.WithLabelValues(name, "error").Inc()
		log.WithError(err).WithField("elapsed", elapsed.String()).Error("job failed")
		return err
	}
	telemetry.JobRunsTotal.WithLabelValues(name, "ok").Inc()
	log.WithField("elapsed", elapsed.String()).Info("job finished")
	return nil
}

// runScheduled is the cron entry point: a fresh trace per tick, errors are logged only.
func runScheduled(name string, fn func(ctx context.Context) error) {
	ctx := logger.WithTraceID(context.Background(), utils.NewTraceID())
	_ = Track(ctx, name, fn)
}
