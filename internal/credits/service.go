package credits

import (
	"context"
	"errors"
	"fmt"

	"seo-analysis-backend/internal/shared/metrics"
	"seo-analysis-backend/internal/shared/telemetry"
)

const defaultHistoryLimit = 20

type store interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Hold atomically decrements the balance when it covers amount.
	Hold(ctx context.Context, userID, analysisID string, amount int) (Entry, error)
	// Add increments the balance (grant, release).
	Add(ctx context.Context, userID, analysisID string, kind EntryType, amount int) (Entry, error)
	// Capture records that a hold became a final charge. The balance is unchanged.
	Capture(ctx context.Context, userID, analysisID string, amount int) (Entry, error)
	Entries(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// Service is the per-user credit ledger. A charge is a Hold taken before the
// work starts, then either a Capture (work succeeded) or a Release (refund).
type Service struct {
	store store
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(st *PGStore) *Service {
	return &Service{store: st}
}

// NewRedisService constructs a Service backed by Redis.
func NewRedisService(st *RedisStore) *Service {
	return &Service{store: st}
}

// Check reports whether the user's balance covers amount. It has no side effects.
func (s *Service) Check(ctx context.Context, userID string, amount int) (bool, error) {
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// Balance returns the current balance; unknown users have zero.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, wrapStore("balance", err)
	}
	return bal, nil
}

// Hold reserves amount for analysisID or fails with ErrInsufficientCredits.
func (s *Service) Hold(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	e, err := s.store.Hold(ctx, userID, analysisID, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return Entry{}, err
		}
		return Entry{}, wrapStore("hold", err)
	}
	telemetry.Info("credits.hold", map[string]any{
		"user_id":       userID,
		"analysis_id":   analysisID,
		"amount":        amount,
		"balance_after": e.BalanceAfter,
	})
	return e, nil
}

// Capture turns the hold for analysisID into a charge.
func (s *Service) Capture(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	e, err := s.store.Capture(ctx, userID, analysisID, amount)
	if err != nil {
		return Entry{}, wrapStore("capture", err)
	}
	metrics.AddCreditsCharged(amount)
	telemetry.Info("credits.capture", map[string]any{
		"user_id":     userID,
		"analysis_id": analysisID,
		"amount":      amount,
	})
	return e, nil
}

// Release refunds the hold for analysisID.
func (s *Service) Release(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	e, err := s.store.Add(ctx, userID, analysisID, EntryRelease, amount)
	if err != nil {
		return Entry{}, wrapStore("release", err)
	}
	metrics.AddCreditsReleased(amount)
	telemetry.Info("credits.release", map[string]any{
		"user_id":       userID,
		"analysis_id":   analysisID,
		"amount":        amount,
		"balance_after": e.BalanceAfter,
	})
	return e, nil
}

// Grant tops up a user's balance.
func (s *Service) Grant(ctx context.Context, userID string, amount int) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	e, err := s.store.Add(ctx, userID, "", EntryGrant, amount)
	if err != nil {
		return Entry{}, wrapStore("grant", err)
	}
	return e, nil
}

// History returns the balance and the most recent entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) (Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	entries, err := s.store.Entries(ctx, userID, limit)
	if err != nil {
		return Summary{}, wrapStore("entries", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Summary{Balance: bal, Entries: entries}, nil
}

func wrapStore(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
