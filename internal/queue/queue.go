package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Enqueuer is the part of *asynq.Client used to schedule tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePost schedules a single execution of the post. Tasks are never retried by the
// queue; a failed post waits for the next sweep instead.
func EnqueuePost(ctx context.Context, client Enqueuer, payload ExecutePostPayload, delay time.Duration) (*asynq.TaskInfo, error) {
	payload.TraceID = logger.TraceID(ctx)
	return enqueue(ctx, client, TaskTypeExecutePost, payload, delay, asynq.MaxRetry(0))
}

func EnqueueLoopRun(ctx context.Context, client Enqueuer, payload RunLoopPayload, delay time.Duration) (*asynq.TaskInfo, error) {
	payload.TraceID = logger.TraceID(ctx)
	return enqueue(ctx, client, TaskTypeRunLoop, payload, delay, asynq.MaxRetry(0))
}

func enqueue(ctx context.Context, client Enqueuer, taskType string, payload any, delay time.Duration, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(taskType, taskPayload)
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	info, err := client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"task":    taskType,
		"task_id": info.ID,
		"delay":   delay.String(),
	}).Info("task scheduled")
	return info, nil
}
