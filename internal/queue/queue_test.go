package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/xpilot/internal/service"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type stubExecutor struct {
	service.PostExecutor
	err error
	ids []string
}

func (s *stubExecutor) Execute(_ context.Context, postID string) (*service.ExecuteResult, error) {
	s.ids = append(s.ids, postID)
	if s.err != nil {
		return nil, s.err
	}
	return &service.ExecuteResult{PostID: postID, Status: "posted"}, nil
}

type stubRunner struct {
	service.LoopRunner
	err error
}

func (s *stubRunner) RunLoop(_ context.Context, loopID string) (*service.LoopRunResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.LoopRunResult{LoopID: loopID, Status: service.LoopCompleted}, nil
}

func TestEnqueuePost_CarriesTraceAndNoRetry(t *testing.T) {
	enq := &recordingEnqueuer{}
	ctx := logger.WithTraceID(context.Background(), "trace-123")

	info, err := EnqueuePost(ctx, enq, ExecutePostPayload{PostID: "p1"}, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "task-1", info.ID)

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskTypeExecutePost, enq.tasks[0].Type())

	var payload ExecutePostPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "p1", payload.PostID)
	assert.Equal(t, "trace-123", payload.TraceID)

	var types []asynq.OptionType
	for _, o := range enq.opts[0] {
		types = append(types, o.Type())
	}
	assert.Contains(t, types, asynq.MaxRetryOpt)
	assert.Contains(t, types, asynq.ProcessInOpt)
}

func TestEnqueueLoopRun_Error(t *testing.T) {
	_, err := EnqueueLoopRun(context.Background(), &recordingEnqueuer{err: errors.New("redis down")}, RunLoopPayload{LoopID: "l1"}, 0)
	assert.EqualError(t, err, "redis down")
}

func TestHandleExecutePostTask(t *testing.T) {
	exec := &stubExecutor{}
	q := NewQueue(exec, &stubRunner{})

	body, _ := json.Marshal(ExecutePostPayload{PostID: "p1"})
	require.NoError(t, q.HandleExecutePostTask(context.Background(), asynq.NewTask(TaskTypeExecutePost, body)))
	assert.Equal(t, []string{"p1"}, exec.ids)
}

func TestHandleExecutePostTask_FinalErrorsSkipRetry(t *testing.T) {
	q := NewQueue(&stubExecutor{err: service.ErrAlreadyPosted}, &stubRunner{})

	body, _ := json.Marshal(ExecutePostPayload{PostID: "p1"})
	err := q.HandleExecutePostTask(context.Background(), asynq.NewTask(TaskTypeExecutePost, body))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, service.ErrAlreadyPosted)
}

func TestHandleExecutePostTask_BadPayload(t *testing.T) {
	q := NewQueue(&stubExecutor{}, &stubRunner{})
	err := q.HandleExecutePostTask(context.Background(), asynq.NewTask(TaskTypeExecutePost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRunLoopTask(t *testing.T) {
	body, _ := json.Marshal(RunLoopPayload{LoopID: "l1"})

	q := NewQueue(&stubExecutor{}, &stubRunner{})
	assert.NoError(t, q.HandleRunLoopTask(context.Background(), asynq.NewTask(TaskTypeRunLoop, body)))

	boom := errors.New("db down")
	q = NewQueue(&stubExecutor{}, &stubRunner{err: boom})
	err := q.HandleRunLoopTask(context.Background(), asynq.NewTask(TaskTypeRunLoop, body))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
