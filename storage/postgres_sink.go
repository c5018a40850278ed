package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"drinklog/utils"
)

// PostgresSink persists the enriched table to PostgreSQL.
type PostgresSink struct {
	*sqlSink
}

// NewPostgresSink opens a connection to PostgreSQL, waits for the server to
// answer using retry, runs schema migrations and returns a ready sink.
func NewPostgresSink(ctx context.Context, dsn string, retry utils.RetryConfig) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresSink{sqlSink: newSQLSink(db, "postgres", sq.Dollar)}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresSink) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS drink_entries (
			id         SERIAL PRIMARY KEY,
			entry_date TEXT             NOT NULL DEFAULT '',
			date_parsed BOOLEAN         NOT NULL DEFAULT FALSE,
			drink      TEXT             NOT NULL DEFAULT '',
			brand      TEXT             NOT NULL DEFAULT '',
			place      TEXT             NOT NULL DEFAULT '',
			price      NUMERIC          NOT NULL DEFAULT 0,
			location   TEXT             NOT NULL DEFAULT '',
			volume_l   DOUBLE PRECISION NOT NULL DEFAULT 0,
			alcohol_l  DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		ALTER TABLE drink_entries ADD COLUMN IF NOT EXISTS date_parsed BOOLEAN NOT NULL DEFAULT FALSE;
		ALTER TABLE drink_entries ALTER COLUMN price TYPE NUMERIC;

		CREATE INDEX IF NOT EXISTS idx_drink_entries_date     ON drink_entries(entry_date);
		CREATE INDEX IF NOT EXISTS idx_drink_entries_location ON drink_entries(location);
		CREATE INDEX IF NOT EXISTS idx_drink_entries_drink    ON drink_entries(drink);
	`)
	return err
}
