package analyses

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Analysis
	byTask map[string]string
	byUser map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Analysis),
		byTask: make(map[string]string),
		byUser: make(map[string][]string),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	if analysis.TaskID != "" {
		r.byTask[analysis.TaskID] = analysis.ID
	}
	r.byUser[analysis.UserID] = append(r.byUser[analysis.UserID], analysis.ID)
	return nil
}

// Complete stores the canonical result and marks the analysis completed.
func (r *MemoryRepo) Complete(ctx context.Context, analysisID string, result json.RawMessage) error {
	return r.finish(ctx, analysisID, func(a *Analysis) {
		a.Status = StatusCompleted
		a.Result = append(json.RawMessage(nil), result...)
		a.Error = ""
	})
}

// Fail stores the failure message and marks the analysis failed.
func (r *MemoryRepo) Fail(ctx context.Context, analysisID, message string) error {
	return r.finish(ctx, analysisID, func(a *Analysis) {
		a.Status = StatusFailed
		a.Result = nil
		a.Error = message
	})
}

func (r *MemoryRepo) finish(ctx context.Context, analysisID string, apply func(*Analysis)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if analysis.IsTerminal() {
		return ErrAlreadyTerminal
	}
	apply(&analysis)
	now := time.Now().UTC()
	analysis.UpdatedAt = now
	analysis.CompletedAt = &now
	r.byID[analysisID] = analysis
	return nil
}

// GetByID returns the user's analysis by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// GetByTaskID returns the user's analysis correlated with a provider task.
func (r *MemoryRepo) GetByTaskID(ctx context.Context, userID, taskID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTask[taskID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	analysis := r.byID[id]
	if analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// ListByUser returns the user's analyses newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Analysis, 0, len(r.byUser[userID]))
	for _, id := range r.byUser[userID] {
		a := r.byID[id]
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
