// Package postgres implements the repository interfaces needed by the
// profile loader, camera policy resolver, incident manager, and topology
// service over database/sql + lib/pq, following the teacher's DBTX idiom:
// a narrow interface over *sql.DB/*sql.Tx so repositories are storage-shape
// agnostic and trivially mockable with go-sqlmock.
package postgres

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the concrete repositories over a shared connection pool.
type Store struct {
	DB DBTX
}

func New(db DBTX) *Store {
	return &Store{DB: db}
}
