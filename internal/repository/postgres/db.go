package postgres

import (
	"context"
	"database/sql"

	"courier/internal/repository"
)

// Querier is the slice of database/sql shared by *sql.DB and *sql.Tx, so a
// repository can run inside a transaction without knowing about it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// rowsTouched reports whether a guarded UPDATE matched its row. Guarded
// transitions treat zero rows as "lost the race", not as an error.
func rowsTouched(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// execExpectingRow runs an UPDATE that must touch exactly the addressed row
// and maps a miss to ErrNotFound.
func execExpectingRow(ctx context.Context, q Querier, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	touched, err := rowsTouched(result)
	if err != nil {
		return err
	}
	if !touched {
		return repository.ErrNotFound
	}

	return nil
}
