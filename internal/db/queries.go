package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// VariantState is the last-known availability of one (branch, weight) pair.
type VariantState struct {
	BranchCode   string
	WeightGrams  float64
	PriceIdr     int64
	Availability AvailabilityState
	CheckedAt    time.Time
}

// InsertCheck records that a branch was checked, whether the check worked,
// and how many price-bearing elements the page carried.
func (q *Queries) InsertCheck(ctx context.Context, branchCode string, checkedAt time.Time, variantCount int, ok bool) error {
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO branch_check (branch_code, checked_at, variant_count, ok)
		 VALUES (?, ?, ?, ?)`,
		branchCode, checkedAt.UTC().Format(time.RFC3339), variantCount, okInt,
	)
	return err
}

// UpsertVariantState replaces the last-known state of one (branch, weight)
// pair.
func (q *Queries) UpsertVariantState(ctx context.Context, state VariantState) error {
	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO variant_state (branch_code, weight_grams, price_idr, availability, checked_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (branch_code, weight_grams) DO UPDATE SET
		   price_idr = excluded.price_idr,
		   availability = excluded.availability,
		   checked_at = excluded.checked_at`,
		state.BranchCode,
		state.WeightGrams,
		state.PriceIdr,
		int64(state.Availability),
		state.CheckedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// VariantStates returns the last-known states for a branch, keyed by weight.
func (q *Queries) VariantStates(ctx context.Context, branchCode string) (map[float64]VariantState, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT branch_code, weight_grams, price_idr, availability, checked_at
		 FROM variant_state WHERE branch_code = ?`,
		branchCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[float64]VariantState{}
	for rows.Next() {
		var state VariantState
		var checkedAt string
		err := rows.Scan(
			&state.BranchCode,
			&state.WeightGrams,
			&state.PriceIdr,
			&state.Availability,
			&checkedAt,
		)
		if err != nil {
			return nil, err
		}
		state.CheckedAt, err = time.Parse(time.RFC3339, checkedAt)
		if err != nil {
			return nil, err
		}
		out[state.WeightGrams] = state
	}
	return out, rows.Err()
}

// LastNonZeroCount returns the most recent successful check of the branch
// that saw at least one price-bearing element, or 0 if there has never been
// one. Comparing it against a fresh zero-variant snapshot is how callers
// tell "branch sells nothing" apart from "page structure changed".
func (q *Queries) LastNonZeroCount(ctx context.Context, branchCode string) (int64, error) {
	row := q.db.QueryRowContext(
		ctx,
		`SELECT variant_count FROM branch_check
		 WHERE branch_code = ? AND ok = 1 AND variant_count > 0
		 ORDER BY checked_at DESC LIMIT 1`,
		branchCode,
	)
	var count int64
	err := row.Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}
