package analyses

import (
	"context"
	"encoding/json"
)

// Repo defines persistence operations for analyses. Complete and Fail only
// apply to non-terminal records and return ErrAlreadyTerminal otherwise.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	Complete(ctx context.Context, analysisID string, result json.RawMessage) error
	Fail(ctx context.Context, analysisID, message string) error
	GetByID(ctx context.Context, userID, analysisID string) (Analysis, error)
	GetByTaskID(ctx context.Context, userID, taskID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error)
}
