package queue

import (
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/xpilot/internal/service"
)

type Queue struct {
	pe service.PostExecutor
	lr service.LoopRunner
}

func NewQueue(pe service.PostExecutor, lr service.LoopRunner) *Queue {
	return &Queue{
		pe: pe,
		lr: lr,
	}
}

// Register wires the task handlers into mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeExecutePost, q.HandleExecutePostTask)
	mux.HandleFunc(TaskTypeRunLoop, q.HandleRunLoopTask)
}

const (
	TaskTypeExecutePost = "post:execute"
	TaskTypeRunLoop     = "loop:run"
)

type ExecutePostPayload struct {
	PostID  string `json:"post_id"`
	TraceID string `json:"trace_id,omitempty"`
}

type RunLoopPayload struct {
	LoopID  string `json:"loop_id"`
	TraceID string `json:"trace_id,omitempty"`
}
