package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.Mutex
	balances map[string]int
	entries  map[string][]Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		balances: make(map[string]int),
		entries:  make(map[string][]Entry),
	}
}

func (s *memoryStore) Balance(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *memoryStore) Hold(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.balances[userID]
	if bal < amount {
		return Entry{}, ErrInsufficientCredits
	}
	bal -= amount
	s.balances[userID] = bal
	return s.appendLocked(userID, analysisID, EntryHold, amount, bal), nil
}

func (s *memoryStore) Add(ctx context.Context, userID, analysisID string, kind EntryType, amount int) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.balances[userID] + amount
	s.balances[userID] = bal
	return s.appendLocked(userID, analysisID, kind, amount, bal), nil
}

func (s *memoryStore) Capture(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(userID, analysisID, EntryCapture, amount, s.balances[userID]), nil
}

func (s *memoryStore) Entries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.entries[userID]
	out := make([]Entry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *memoryStore) appendLocked(userID, analysisID string, kind EntryType, amount, balanceAfter int) Entry {
	e := Entry{
		ID:           uuid.NewString(),
		UserID:       userID,
		AnalysisID:   analysisID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		CreatedAt:    time.Now().UTC(),
	}
	s.entries[userID] = append(s.entries[userID], e)
	return e
}
