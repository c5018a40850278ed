package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// SQLiteSink persists the enriched table to a local SQLite file. Use
// ":memory:" for a throwaway database.
type SQLiteSink struct {
	*sqlSink
}

func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	ss := &SQLiteSink{sqlSink: newSQLSink(db, "sqlite", sq.Question)}
	if err := ss.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return ss, nil
}

func (ss *SQLiteSink) migrate(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS drink_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_date TEXT    NOT NULL DEFAULT '',
			date_parsed INTEGER NOT NULL DEFAULT 0,
			drink      TEXT    NOT NULL DEFAULT '',
			brand      TEXT    NOT NULL DEFAULT '',
			place      TEXT    NOT NULL DEFAULT '',
			price      TEXT    NOT NULL DEFAULT '0',
			location   TEXT    NOT NULL DEFAULT '',
			volume_l   REAL    NOT NULL DEFAULT 0,
			alcohol_l  REAL    NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drink_entries_date ON drink_entries(entry_date)`,
		`CREATE INDEX IF NOT EXISTS idx_drink_entries_location ON drink_entries(location)`,
	} {
		if _, err := ss.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return ss.addColumn(ctx, "date_parsed", "INTEGER NOT NULL DEFAULT 0")
}

// addColumn upgrades a table created before column existed.
func (ss *SQLiteSink) addColumn(ctx context.Context, column, def string) error {
	rows, err := ss.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('drink_entries')`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = ss.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE drink_entries ADD COLUMN %s %s", column, def))
	return err
}
