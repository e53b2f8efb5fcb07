package pgx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is the subset of methods shared by *pgx.Conn and *pgxpool.Pool. Code that only
// needs to run statements and open transactions should accept a Conn, so tests and
// callers can hand it either a single connection or a pool.
type Conn interface {
	// Exec executes a SQL statement and returns its command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a query and returns the resulting rows, which the caller must close.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// Begin starts a transaction. Unlike database/sql, the context only affects the begin command.
	// i.e. there is no auto-rollback on context cancellation.
	Begin(ctx context.Context) (pgx.Tx, error)
}
