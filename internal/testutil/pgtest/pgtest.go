package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// EnvVar names the environment variable holding the test database connection string.
const EnvVar = "TEST_DATABASE"

// ParseConfig returns a test connection config with notice logging. The calling test is
// skipped when TEST_DATABASE is not set.
func ParseConfig(t testing.TB) *pgx.ConnConfig {
	t.Helper()

	connString := os.Getenv(EnvVar)
	if connString == "" {
		t.Skipf("%s not set, skipping database test", EnvVar)
	}

	config, err := pgx.ParseConfig(connString)
	require.NoError(t, err)

	config.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}

	return config
}

// Connect creates a new database connection for testing and closes it on cleanup.
func Connect(ctx context.Context, t testing.TB) *pgx.Conn {
	t.Helper()

	conn, err := pgx.ConnectConfig(ctx, ParseConfig(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, conn)
	})

	return conn
}

// Close safely closes a database connection
func Close(t testing.TB, conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Close(ctx))
}

// Schema creates a throwaway schema, points the connection's search_path at it and drops it
// on cleanup, so tests can create tables without touching real data.
func Schema(ctx context.Context, t testing.TB, conn *pgx.Conn, name string) {
	t.Helper()

	ident := pgx.Identifier{name}.Sanitize()
	_, err := conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+ident+" CASCADE; CREATE SCHEMA "+ident)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "SET search_path TO "+ident)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
	})
}
