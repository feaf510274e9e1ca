package analyses

import (
	"encoding/json"
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis is the lifecycle record of one billed provider request.
// Result is set iff Status is completed, Error iff failed.
type Analysis struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Type        Type            `json:"type"`
	Input       json.RawMessage `json:"input"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	CreditCost  int             `json:"credit_cost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the record can no longer change.
func (a Analysis) IsTerminal() bool {
	return isTerminalStatus(a.Status)
}

func isTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

func isValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ListFilter narrows a history listing. Empty fields match everything.
type ListFilter struct {
	Type   Type
	Status string
	Limit  int
}

// RunResult is what a started analysis reports back to the caller.
type RunResult struct {
	AnalysisID string
	Mode       Mode
	Status     string
	TaskID     string
	Result     json.RawMessage
}

// PollResult is the observed state of a deferred analysis.
type PollResult struct {
	AnalysisID string
	Status     string
	Result     json.RawMessage
	Error      string
}
