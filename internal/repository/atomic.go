package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRowsAffected is returned by ExecAtomic when a statement marked
// RequireRows touched zero rows. The whole batch is rolled back.
var ErrNoRowsAffected = errors.New("statement affected no rows")

// Statement is one entry of an atomic batch. SQL may end in RETURNING id,
// in which case the generated id is captured in the statement result.
// RequireRows turns a zero-row write into a batch-aborting failure, which
// is how the workflow layer expresses its compare-and-swap on ticket state.
type Statement struct {
	SQL         string
	Args        []any
	RequireRows bool
}

// StatementResult carries per-statement metadata out of an atomic batch.
type StatementResult struct {
	RowsAffected int64
	InsertedID   int64
}

// AtomicWriter applies an ordered list of statements all-or-nothing.
type AtomicWriter interface {
	ExecAtomic(ctx context.Context, stmts []Statement) ([]StatementResult, error)
}

type atomicWriter struct {
	pool *pgxpool.Pool
}

// NewAtomicWriter returns a transaction-backed AtomicWriter.
func NewAtomicWriter(pool *pgxpool.Pool) AtomicWriter {
	return &atomicWriter{pool: pool}
}

func (w *atomicWriter) ExecAtomic(ctx context.Context, stmts []Statement) ([]StatementResult, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	results := make([]StatementResult, 0, len(stmts))
	for _, st := range stmts {
		rows, err := tx.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, err
		}

		var insertedID int64
		if rows.Next() {
			if err := rows.Scan(&insertedID); err != nil {
				rows.Close()
				return nil, err
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		affected := rows.CommandTag().RowsAffected()
		if st.RequireRows && affected == 0 {
			return nil, ErrNoRowsAffected
		}
		results = append(results, StatementResult{RowsAffected: affected, InsertedID: insertedID})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}
