package transfer

import (
	"encoding/json"
	"errors"
)

const maxValidateAccounts = 100

// JobResponse is the envelope every job endpoint returns. Counts are written as top-level
// fields next to success, results and trace_id.
type JobResponse struct {
	Success bool
	Counts  map[string]int
	Results any
	Error   string
	TraceID string
}

func (r JobResponse) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Counts)+4)
	for k, v := range r.Counts {
		out[k] = v
	}
	out["success"] = r.Success
	out["trace_id"] = r.TraceID
	if r.Results != nil {
		out["results"] = r.Results
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

type ValidateTokensRequest struct {
	AccountIDs  []string `json:"account_ids"`
	AutoRefresh *bool    `json:"auto_refresh,omitempty"`
}

func (r *ValidateTokensRequest) Validate() error {
	if len(r.AccountIDs) == 0 {
		return errors.New("account_ids is required")
	}
	if len(r.AccountIDs) > maxValidateAccounts {
		return errors.New("at most 100 account_ids per request")
	}
	for _, id := range r.AccountIDs {
		if id == "" {
			return errors.New("account_ids must not contain empty values")
		}
	}
	return nil
}

// ShouldRefresh defaults to true when auto_refresh is omitted.
func (r *ValidateTokensRequest) ShouldRefresh() bool {
	return r.AutoRefresh == nil || *r.AutoRefresh
}

type EnqueueRequest struct {
	DelaySeconds int `json:"delay_seconds"`
}

func (r *EnqueueRequest) Validate() error {
	if r.DelaySeconds < 0 {
		return errors.New("delay_seconds must not be negative")
	}
	return nil
}

type RunLoopsRequest struct {
	LoopID string `json:"loop_id,omitempty"`
}

type EnqueueResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}
