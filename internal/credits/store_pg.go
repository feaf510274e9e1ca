package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGStore keeps balances and entries in Postgres.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credit store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Balance(ctx context.Context, userID string) (int, error) {
	var bal int
	err := s.DB.QueryRowContext(ctx, `SELECT balance FROM credit_balances WHERE user_id = $1`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func (s *PGStore) Hold(ctx context.Context, userID, analysisID string, amount int) (e Entry, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var bal int
	err = tx.QueryRowContext(ctx, `
UPDATE credit_balances SET balance = balance - $2, updated_at = now()
WHERE user_id = $1 AND balance >= $2
RETURNING balance`, userID, amount).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrInsufficientCredits
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, err
	}

	e, err = insertEntry(ctx, tx, userID, analysisID, EntryHold, amount, bal)
	if err != nil {
		return Entry{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PGStore) Add(ctx context.Context, userID, analysisID string, kind EntryType, amount int) (e Entry, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var bal int
	err = tx.QueryRowContext(ctx, `
INSERT INTO credit_balances (user_id, balance) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET balance = credit_balances.balance + EXCLUDED.balance, updated_at = now()
RETURNING balance`, userID, amount).Scan(&bal)
	if err != nil {
		return Entry{}, err
	}

	e, err = insertEntry(ctx, tx, userID, analysisID, kind, amount, bal)
	if err != nil {
		return Entry{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PGStore) Capture(ctx context.Context, userID, analysisID string, amount int) (Entry, error) {
	e := Entry{
		ID:         uuid.NewString(),
		UserID:     userID,
		AnalysisID: analysisID,
		Type:       EntryCapture,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO credit_entries (id, user_id, analysis_id, entry_type, amount, balance_after, created_at)
SELECT $1, $2, $3, $4, $5, COALESCE((SELECT balance FROM credit_balances WHERE user_id = $2), 0), $6
RETURNING balance_after`,
		e.ID, userID, nullableUUID(analysisID), string(EntryCapture), amount, e.CreatedAt).Scan(&e.BalanceAfter)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PGStore) Entries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, analysis_id, entry_type, amount, balance_after, created_at
FROM credit_entries
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			analysisID sql.NullString
			kind       string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &analysisID, &kind, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.AnalysisID = analysisID.String
		e.Type = EntryType(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, userID, analysisID string, kind EntryType, amount, balanceAfter int) (Entry, error) {
	e := Entry{
		ID:           uuid.NewString(),
		UserID:       userID,
		AnalysisID:   analysisID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO credit_entries (id, user_id, analysis_id, entry_type, amount, balance_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, nullableUUID(analysisID), string(kind), amount, balanceAfter, e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func nullableUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
