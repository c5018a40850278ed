package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"drinklog/models"
)

const (
	entriesTable = "drink_entries"
	batchSize    = 50
)

var entryColumns = []string{
	"entry_date", "date_parsed", "drink", "brand", "place", "price", "location", "volume_l", "alcohol_l",
}

// sqlSink holds the queries shared by the PostgreSQL and SQLite sinks. The
// backends differ only in driver, placeholder style and schema types.
type sqlSink struct {
	db   *sql.DB
	name string
	qb   sq.StatementBuilderType
}

func newSQLSink(db *sql.DB, name string, placeholder sq.PlaceholderFormat) *sqlSink {
	return &sqlSink{
		db:   db,
		name: name,
		qb:   sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Write replaces the stored table with entries inside one transaction.
func (s *sqlSink) Write(ctx context.Context, entries []models.EnrichedEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	del, args, err := s.qb.Delete(entriesTable).ToSql()
	if err != nil {
		return fmt.Errorf("%s: build delete: %w", s.name, err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("%s: clear: %w", s.name, err)
	}

	for i := 0; i < len(entries); i += batchSize {
		end := i + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := s.insertBatch(ctx, tx, entries[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.name, err)
	}
	return nil
}

func (s *sqlSink) insertBatch(ctx context.Context, tx *sql.Tx, batch []models.EnrichedEntry) error {
	ins := s.qb.Insert(entriesTable).Columns(entryColumns...)
	for _, e := range batch {
		ins = ins.Values(
			e.Date.String(), e.Date.IsParsed(), e.Drink, e.Brand, e.Place, e.Price,
			string(e.Location), e.VolumeLiters, e.AlcoholLiters,
		)
	}

	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("%s: build insert: %w", s.name, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: insert batch: %w", s.name, err)
	}
	return nil
}

// FetchAll returns the stored entries in insertion order.
func (s *sqlSink) FetchAll(ctx context.Context) ([]models.EnrichedEntry, error) {
	query, args, err := s.qb.Select(entryColumns...).From(entriesTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build select: %w", s.name, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.name, err)
	}
	defer rows.Close()

	var entries []models.EnrichedEntry
	for rows.Next() {
		var (
			date, location string
			parsed         bool
			price          decimal.Decimal
			e              models.EnrichedEntry
		)
		if err := rows.Scan(
			&date, &parsed, &e.Drink, &e.Brand, &e.Place, &price,
			&location, &e.VolumeLiters, &e.AlcoholLiters,
		); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.name, err)
		}
		e.Date = StoredDate(date, parsed)
		e.Price = price
		e.Location = models.Region(location)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *sqlSink) Close() error {
	return s.db.Close()
}
