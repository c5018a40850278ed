package storage

import (
	"context"

	"drinklog/models"
)

// EntrySink is the interface any database backend for the enriched table
// must satisfy. Write replaces whatever the sink held before.
type EntrySink interface {
	Write(ctx context.Context, entries []models.EnrichedEntry) error
	FetchAll(ctx context.Context) ([]models.EnrichedEntry, error)
	Close() error
}
