package db

import (
	"database/sql"
)

// MakeTx opens a transaction and hands back transaction-scoped queries
// plus the discard/commit pair that ends it. A branch snapshot and its
// variant-state upserts go through one MakeTx so a failed check never
// half-writes history.
type MakeTx = func() (tx *Queries, discard, commit func() error, err error)

// NewMakeTx binds MakeTx to a database handle.
func NewMakeTx(handle *sql.DB) MakeTx {
	return func() (tx *Queries, discard, commit func() error, err error) {
		sqltx, err := handle.Begin()
		if err != nil {
			return nil, nil, nil, err
		}
		return New(sqltx), sqltx.Rollback, sqltx.Commit, nil
	}
}
