// Package store persists water level readings in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	pg "github.com/edgeflare/eelytics/pkg/pgx"
	"github.com/jackc/pgx/v5"
)

// Reading is a single sensor sample. Rows are only ever inserted.
type Reading struct {
	ID        int64     `json:"id" db:"id"`
	TankID    int       `json:"tank_id" db:"tank_id"`
	LevelCM   float64   `json:"level_cm" db:"level_cm"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS water_level (
	id          SERIAL PRIMARY KEY,
	tank_id     INTEGER NOT NULL,
	level_cm    DOUBLE PRECISION NOT NULL,
	"timestamp" TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS water_level_timestamp_idx ON water_level ("timestamp" DESC);
`

// Store reads and writes the water_level table.
type Store struct {
	conn pg.Conn
}

// New returns a Store backed by conn, typically a *pgxpool.Pool.
func New(conn pg.Conn) *Store {
	return &Store{conn: conn}
}

// Migrate creates the water_level table and its index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// InsertReading persists a reading inside its own transaction and returns the stored row.
func (s *Store) InsertReading(ctx context.Context, tankID int, levelCM float64) (Reading, error) {
	r := Reading{TankID: tankID, LevelCM: levelCM}

	err := pg.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO water_level (tank_id, level_cm) VALUES ($1, $2) RETURNING id, "timestamp"`,
			tankID, levelCM,
		).Scan(&r.ID, &r.Timestamp)
	})
	if err != nil {
		return Reading{}, fmt.Errorf("store: insert reading: %w", err)
	}
	return r, nil
}

// ListReadings returns every reading, newest first.
func (s *Store) ListReadings(ctx context.Context) ([]Reading, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, tank_id, level_cm, "timestamp" FROM water_level ORDER BY "timestamp" DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list readings: %w", err)
	}

	readings, err := pgx.CollectRows(rows, pgx.RowToStructByName[Reading])
	if err != nil {
		return nil, fmt.Errorf("store: scan readings: %w", err)
	}
	if readings == nil {
		readings = []Reading{}
	}
	return readings, nil
}

// Ping runs a trivial query to check that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}
