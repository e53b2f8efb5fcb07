package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption customizes the parsed *pgxpool.Config before the pool is created.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps the number of open connections held by the pool.
func WithMaxConns(n int32) PoolOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// NewPool parses connString and returns a pool. Connections are established lazily,
// so an unreachable server is not an error here; see WaitReady.
func NewPool(ctx context.Context, connString string, opts ...PoolOption) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, errors.New("pgx: connection string is empty")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("pgx: parse config: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgx: creating pool: %w", err)
	}
	return pool, nil
}

// Pinger is implemented by *pgxpool.Pool and *pgx.Conn.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings p with exponential backoff until it answers, ctx is done or maxElapsed
// passes. It is meant for process startup only.
func WaitReady(ctx context.Context, p Pinger, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	operation := func() error {
		return p.Ping(ctx)
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("pgx: ping connection: %w", err)
	}
	return nil
}
