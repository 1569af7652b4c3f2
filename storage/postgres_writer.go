package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"otodom-scraper/models"
)

// pgColumns lists the listings table columns in insert order.
var pgColumns = []string{
	"link", "area", "price", "rent", "rooms_num", "floors_num", "floor_no", "build_year",
	"market", "district", "construction_status",
	"garage", "lift", "basement", "balcony", "garden", "terrace",
	"latitude", "longitude",
}

// PostgresWriter mirrors emitted listings into PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter. The server gets a few pings to
// come up unless ctx ends first.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := pingWithRetry(ctx, db, 5, 2*time.Second); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

// pinger is the part of *sql.DB used while waiting for the server.
type pinger interface {
	PingContext(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, attempts int, wait time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			link                TEXT PRIMARY KEY,
			area                DOUBLE PRECISION,
			price               DOUBLE PRECISION,
			rent                DOUBLE PRECISION,
			rooms_num           INTEGER,
			floors_num          INTEGER,
			floor_no            INTEGER,
			build_year          INTEGER,
			market              TEXT,
			district            TEXT,
			construction_status TEXT,
			garage              BOOLEAN,
			lift                BOOLEAN,
			basement            BOOLEAN,
			balcony             BOOLEAN,
			garden              BOOLEAN,
			terrace             BOOLEAN,
			latitude            DOUBLE PRECISION,
			longitude           DOUBLE PRECISION,
			scraped_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_district ON listings(district);
		CREATE INDEX IF NOT EXISTS idx_listings_market   ON listings(market);
		CREATE INDEX IF NOT EXISTS idx_listings_price    ON listings(price);
	`)
	return err
}

// Write inserts one listing; a link already stored is left untouched.
func (pw *PostgresWriter) Write(ctx context.Context, l *models.Listing) error {
	if _, err := pw.db.ExecContext(ctx, insertListingSQL, insertArgs(l)...); err != nil {
		return fmt.Errorf("postgres: insert %s: %w", l.Link, err)
	}
	return nil
}

var insertListingSQL = buildInsertSQL()

func buildInsertSQL() string {
	placeholders := make([]string, len(pgColumns))
	for i := range pgColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO listings (%s) VALUES (%s) ON CONFLICT (link) DO NOTHING",
		strings.Join(pgColumns, ", "), strings.Join(placeholders, ", "))
}

func insertArgs(l *models.Listing) []any {
	return []any{
		l.Link, l.Area, l.Price, l.Rent, l.RoomsNum, l.FloorsNum, l.FloorNo, l.BuildYear,
		l.Market, l.District, l.ConstructionStatus,
		nullBool(l.Garage), nullBool(l.Lift), nullBool(l.Basement),
		nullBool(l.Balcony), nullBool(l.Garden), nullBool(l.Terrace),
		l.Latitude, l.Longitude,
	}
}

func nullBool(t models.Tristate) sql.NullBool {
	return sql.NullBool{Bool: t == models.Yes, Valid: t != models.Unknown}
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
