package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrProvider marks any failure reported by, or while talking to, the data provider.
var ErrProvider = errors.New("provider error")

// ErrUnavailable marks failures where the provider gave no answer about the
// request: network errors, HTTP 5xx and 429.
var ErrUnavailable = errors.New("provider unavailable")

// Error carries the provider's message verbatim so it can be stored on a failed analysis.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrProvider
}

// Errorf builds a provider Error with a formatted message.
func Errorf(statusCode int, format string, args ...any) *Error {
	return &Error{StatusCode: statusCode, Message: fmt.Sprintf(format, args...)}
}

// Message extracts the user-facing message of a provider failure.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsTransient reports whether err says nothing about the outcome of the call,
// so a later attempt may still succeed.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusTooManyRequests ||
			(pe.StatusCode >= 500 && pe.StatusCode <= 599)
	}
	return false
}

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is the observed state of a deferred provider task.
// Results is set when completed, Error when failed.
type TaskStatus struct {
	State   TaskState
	Results []json.RawMessage
	Error   string
}

// Gateway is the boundary to the external data provider.
type Gateway interface {
	CallSync(ctx context.Context, endpoint string, payload map[string]any) ([]json.RawMessage, error)
	SubmitTask(ctx context.Context, endpoint string, payload map[string]any) (string, error)
	FetchTaskStatus(ctx context.Context, taskID string, endpoint string) (TaskStatus, error)
}
