package storage

import (
	"context"

	"otodom-scraper/models"
)

// Sink is any secondary store that receives each emitted listing.
type Sink interface {
	Write(ctx context.Context, l *models.Listing) error
	Close() error
}

// RowWriter is the dataset side of a crawl: rows in a fixed column order.
type RowWriter interface {
	Schema() models.Schema
	WriteRow(values []any) error
	Close() error
}

var _ RowWriter = (*DatasetWriter)(nil)
