package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, type, input, status, result, error, task_id, credit_cost, created_at, updated_at, completed_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, type, input, status, result, error, task_id, credit_cost, created_at, updated_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		string(analysis.Type),
		jsonbOrEmpty(analysis.Input),
		analysis.Status,
		nullableJSON(analysis.Result),
		nullableString(analysis.Error),
		nullableString(analysis.TaskID),
		analysis.CreditCost,
		analysis.CreatedAt,
		analysis.UpdatedAt,
		analysis.CompletedAt,
	)
	return err
}

// Complete stores the canonical result on a non-terminal analysis.
func (r *PGRepo) Complete(ctx context.Context, analysisID string, result json.RawMessage) error {
	const query = `
UPDATE analyses
SET status = 'completed', result = $2, error = NULL, updated_at = $3, completed_at = $3
WHERE id = $1 AND status IN ('pending', 'processing')`
	return r.finish(ctx, query, analysisID, nullableJSON(result))
}

// Fail stores the failure message on a non-terminal analysis.
func (r *PGRepo) Fail(ctx context.Context, analysisID, message string) error {
	const query = `
UPDATE analyses
SET status = 'failed', result = NULL, error = $2, updated_at = $3, completed_at = $3
WHERE id = $1 AND status IN ('pending', 'processing')`
	return r.finish(ctx, query, analysisID, message)
}

func (r *PGRepo) finish(ctx context.Context, query, analysisID string, value any) error {
	res, err := r.DB.ExecContext(ctx, query, analysisID, value, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM analyses WHERE id = $1`, analysisID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyTerminal
}

// GetByID returns the user's analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 AND user_id = $2 LIMIT 1`
	return scanOne(r.DB.QueryRowContext(ctx, query, analysisID, userID))
}

// GetByTaskID returns the user's analysis correlated with a provider task.
func (r *PGRepo) GetByTaskID(ctx context.Context, userID, taskID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE task_id = $1 AND user_id = $2 LIMIT 1`
	return scanOne(r.DB.QueryRowContext(ctx, query, taskID, userID))
}

// ListByUser returns the user's analyses newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row rowScanner) (Analysis, error) {
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a           Analysis
		kind        string
		input       []byte
		result      []byte
		errMessage  sql.NullString
		taskID      sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&kind,
		&input,
		&a.Status,
		&result,
		&errMessage,
		&taskID,
		&a.CreditCost,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.Type = Type(kind)
	a.Input = json.RawMessage(input)
	if len(result) > 0 {
		a.Result = json.RawMessage(result)
	}
	a.Error = errMessage.String
	a.TaskID = taskID.String
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

func jsonbOrEmpty(v json.RawMessage) []byte {
	if len(v) == 0 {
		return []byte("{}")
	}
	return []byte(v)
}

func nullableJSON(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return []byte(v)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
