package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/xpilot/internal/jobs"
	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
)

func (q *Queue) HandleExecutePostTask(ctx context.Context, task *asynq.Task) error {
	var payload ExecutePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	ctx = taskContext(ctx, payload.TraceID)

	return job.Track(ctx, job.NamePostExecute, func(ctx context.Context) error {
		res, err := q.pe.Execute(ctx, payload.PostID)
		if err != nil {
			return skipIfFinal(err, service.ErrPostNotFound, service.ErrAlreadyPosted, service.ErrPostInFlight)
		}
		logger.FromContext(ctx).WithField("post_id", res.PostID).WithField("status", res.Status).Info("post task done")
		return nil
	})
}

func (q *Queue) HandleRunLoopTask(ctx context.Context, task *asynq.Task) error {
	var payload RunLoopPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	ctx = taskContext(ctx, payload.TraceID)

	return job.Track(ctx, job.NameLoops, func(ctx context.Context) error {
		res, err := q.lr.RunLoop(ctx, payload.LoopID)
		if err != nil {
			return skipIfFinal(err, service.ErrLoopNotFound, service.ErrLoopInactive)
		}
		logger.FromContext(ctx).WithField("loop_id", res.LoopID).WithField("status", res.Status).Info("loop task done")
		return nil
	})
}

// taskContext continues the trace of the request that enqueued the task.
func taskContext(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = utils.NewTraceID()
	}
	return logger.WithTraceID(ctx, traceID)
}

func skipIfFinal(err error, final ...error) error {
	for _, f := range final {
		if errors.Is(err, f) {
			return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
		}
	}
	return err
}
