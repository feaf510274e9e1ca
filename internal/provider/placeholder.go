package provider

import (
	"context"
	"encoding/json"
)

// ErrNotConfigured is returned by Placeholder for every call.
var ErrNotConfigured = Errorf(0, "data provider is not configured")

// Placeholder is the gateway used in dev when no provider credentials are set.
type Placeholder struct{}

func (Placeholder) CallSync(context.Context, string, map[string]any) ([]json.RawMessage, error) {
	return nil, ErrNotConfigured
}

func (Placeholder) SubmitTask(context.Context, string, map[string]any) (string, error) {
	return "", ErrNotConfigured
}

func (Placeholder) FetchTaskStatus(context.Context, string, string) (TaskStatus, error) {
	return TaskStatus{}, ErrNotConfigured
}

var _ Gateway = Placeholder{}
