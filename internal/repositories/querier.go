package repositories

import (
	"context"
	"database/sql"
	"errors"
)

// ErrDatabaseUnavailable is returned when the service started without a
// usable connection pool.
var ErrDatabaseUnavailable = errors.New("database not configured")

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside an open transaction or on their own connection.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rollback discards tx, ignoring ErrTxDone from an already finished transaction.
func rollback(tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
