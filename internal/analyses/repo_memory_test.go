package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func seedAnalysis(id, userID string, typ Type, taskID string, created time.Time) Analysis {
	return Analysis{
		ID:         id,
		UserID:     userID,
		Type:       typ,
		Input:      json.RawMessage(`{}`),
		Status:     StatusProcessing,
		TaskID:     taskID,
		CreditCost: Cost(typ),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestMemoryRepoTerminalTransitionsAreGuarded(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, seedAnalysis("a1", "u1", TypeBusinessInfo, "", time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Complete(ctx, "a1", json.RawMessage(`{"ok":true}`)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := repo.Fail(ctx, "a1", "late"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
	if err := repo.Complete(ctx, "a1", json.RawMessage(`{}`)); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
	if err := repo.Fail(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	a, err := repo.GetByID(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.Status != StatusCompleted || string(a.Result) != `{"ok":true}` || a.Error != "" || a.CompletedAt == nil {
		t.Fatalf("unexpected record %+v", a)
	}
}

func TestMemoryRepoScopesByOwner(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	repo.Create(ctx, seedAnalysis("a1", "u1", TypeGoogleShopping, "t1", time.Now()))

	if _, err := repo.GetByID(ctx, "u2", "a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByTaskID(ctx, "u2", "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	a, err := repo.GetByTaskID(ctx, "u1", "t1")
	if err != nil || a.ID != "a1" {
		t.Fatalf("GetByTaskID: %+v %v", a, err)
	}
}

func TestMemoryRepoListFiltersAndOrders(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.Create(ctx, seedAnalysis("old", "u1", TypeBusinessInfo, "", base))
	repo.Create(ctx, seedAnalysis("mid", "u1", TypeKeywordData, "", base.Add(time.Minute)))
	repo.Create(ctx, seedAnalysis("new", "u1", TypeBusinessInfo, "", base.Add(2*time.Minute)))
	repo.Create(ctx, seedAnalysis("other", "u2", TypeBusinessInfo, "", base))
	repo.Fail(ctx, "mid", "boom")

	all, _ := repo.ListByUser(ctx, "u1", ListFilter{})
	if len(all) != 3 || all[0].ID != "new" || all[2].ID != "old" {
		t.Fatalf("unexpected order %v", ids(all))
	}
	business, _ := repo.ListByUser(ctx, "u1", ListFilter{Type: TypeBusinessInfo, Limit: 1})
	if len(business) != 1 || business[0].ID != "new" {
		t.Fatalf("unexpected filtered list %v", ids(business))
	}
	failed, _ := repo.ListByUser(ctx, "u1", ListFilter{Status: StatusFailed})
	if len(failed) != 1 || failed[0].ID != "mid" {
		t.Fatalf("unexpected status filter %v", ids(failed))
	}
}

func ids(list []Analysis) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
