package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"otodom-scraper/models"
)

func ptr[T any](v T) *T { return &v }

func testSchema(t *testing.T) models.Schema {
	t.Helper()
	s, err := models.NewSchema([]models.Field{models.FieldArea, models.FieldPrice, models.FieldBalcony})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestOpenDatasetFreshWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")

	w, err := OpenDataset(path, testSchema(t), ModeFresh, ';')
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	if err := w.WriteRow([]any{"https://x/1", 48.5, 400000.0, models.Yes}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := w.WriteListing(&models.Listing{Link: "https://x/2", Price: ptr(1.0)}); err != nil {
		t.Fatalf("WriteListing: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	want := "Link;Area;Price;Balcony\nhttps://x/1;48.5;400000;True\nhttps://x/2;;1;\n"
	if got := readFile(t, path); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOpenDatasetAppendSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	if err := os.WriteFile(path, []byte("Link;Area;Price;Balcony\nhttps://x/1;1;2;False\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := OpenDataset(path, testSchema(t), ModeAppend, ';')
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	if err := w.WriteRow([]any{"https://x/2", 3.0, 4.0, nil}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	want := "Link;Area;Price;Balcony\nhttps://x/1;1;2;False\nhttps://x/2;3;4;\n"
	if got := readFile(t, path); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOpenDatasetAppendTrimsPartialRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	content := "Link;Area;Price;Balcony\nhttps://x/1;1;2;False\nhttps://x/2;3"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := OpenDataset(path, testSchema(t), ModeAppend, ';')
	if err != nil {
		t.Fatalf("OpenDataset: %v", err)
	}
	if err := w.WriteRow([]any{"https://x/3", 5.0, 6.0, models.No}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	want := "Link;Area;Price;Balcony\nhttps://x/1;1;2;False\nhttps://x/3;5;6;False\n"
	if got := readFile(t, path); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTrimPartialRowAcrossBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	content := "Link\nhttps://x/1\n" + strings.Repeat("y", 10000)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := OpenDataset(path, models.Schema{models.FieldLink}, ModeAppend, ';')
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	if got := readFile(t, path); got != "Link\nhttps://x/1\n" {
		t.Errorf("got %q", got)
	}
}

func TestWriteRowRejectsWrongWidth(t *testing.T) {
	w, err := OpenDataset(filepath.Join(t.TempDir(), "l.csv"), testSchema(t), ModeFresh, ';')
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WriteRow([]any{"https://x/1", 1.0}); !errors.Is(err, ErrColumnCount) {
		t.Errorf("expected ErrColumnCount, got %v", err)
	}
}

func TestWriteRowQuotesDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.csv")
	w, err := OpenDataset(path, models.Schema{models.FieldLink, models.FieldDistrict}, ModeFresh, ';')
	if err != nil {
		t.Fatal(err)
	}
	w.WriteRow([]any{"https://x/1", "Plac; Grunwaldzki"})
	w.Close()

	_, rows, err := ReadRows(path, ';')
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][1] != "Plac; Grunwaldzki" {
		t.Errorf("rows %v", rows)
	}
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")
	content := "\ufeffPrice;Link\n1;https://x/1\n2;\n3;https://x/3\n4;https://x/partial"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadDataset(path, ';')
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Schema.String() != "price,link" {
		t.Errorf("schema %s", ds.Schema)
	}
	if ds.Rows != 3 {
		t.Errorf("rows %d, want 3", ds.Rows)
	}
	if len(ds.Links) != 2 || ds.Links[0] != "https://x/1" || ds.Links[1] != "https://x/3" {
		t.Errorf("links %v", ds.Links)
	}
}

func TestLoadDatasetErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadDataset(filepath.Join(dir, "missing.csv"), ';'); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}

	tests := map[string]string{
		"empty":       "",
		"no link":     "Price;Area\n1;2\n",
		"unknown":     "Link;Owner\nx;y\n",
		"wrong width": "Link;Price\nx\n",
	}
	for name, content := range tests {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".csv")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadDataset(path, ';'); !errors.Is(err, ErrCorruptDataset) {
			t.Errorf("%s: expected ErrCorruptDataset, got %v", name, err)
		}
	}
}

func TestPostgresInsertArgs(t *testing.T) {
	l := &models.Listing{
		Link:    "https://x/1",
		Area:    ptr(50.0),
		Market:  ptr("primary"),
		Balcony: models.Yes,
		Garage:  models.No,
	}
	args := insertArgs(l)
	if len(args) != len(pgColumns) {
		t.Fatalf("%d args for %d columns", len(args), len(pgColumns))
	}
	if !strings.Contains(insertListingSQL, "$19") || !strings.Contains(insertListingSQL, "ON CONFLICT (link) DO NOTHING") {
		t.Errorf("sql %s", insertListingSQL)
	}

	col := func(name string) any {
		for i, c := range pgColumns {
			if c == name {
				return args[i]
			}
		}
		t.Fatalf("no column %s", name)
		return nil
	}
	if got := col("balcony").(sql.NullBool); !got.Valid || !got.Bool {
		t.Errorf("balcony %+v", got)
	}
	if got := col("garage").(sql.NullBool); !got.Valid || got.Bool {
		t.Errorf("garage %+v", got)
	}
	if got := col("lift").(sql.NullBool); got.Valid {
		t.Errorf("unknown lift should be NULL, got %+v", got)
	}
	if got := col("rent").(*float64); got != nil {
		t.Errorf("rent %v", got)
	}
}

func TestMongoDocument(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	doc := toDocument(&models.Listing{
		Link:     "https://x/1",
		Price:    ptr(1.5e6),
		District: ptr("Krzyki"),
		Lift:     models.No,
	}, now)

	if doc.Link != "https://x/1" || *doc.Price != 1.5e6 || *doc.District != "Krzyki" {
		t.Errorf("doc %+v", doc)
	}
	if doc.Lift == nil || *doc.Lift {
		t.Errorf("lift %v, want false", doc.Lift)
	}
	if doc.Garage != nil {
		t.Errorf("unknown garage should be omitted")
	}
	if doc.ScrapedAt.Location() != time.UTC || !doc.ScrapedAt.Equal(now) {
		t.Errorf("scraped_at %v", doc.ScrapedAt)
	}
}

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(ctx context.Context) error {
	p.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithRetry(t *testing.T) {
	p := &flakyPinger{failures: 2}
	if err := pingWithRetry(context.Background(), p, 5, time.Millisecond); err != nil {
		t.Fatalf("pingWithRetry: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("calls %d, want 3", p.calls)
	}

	p = &flakyPinger{failures: 10}
	if err := pingWithRetry(context.Background(), p, 3, time.Millisecond); err == nil {
		t.Error("expected the last ping error")
	}
	if p.calls != 3 {
		t.Errorf("calls %d, want 3", p.calls)
	}
}

func TestPingWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := pingWithRetry(ctx, &flakyPinger{failures: 10}, 5, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled connect kept waiting")
	}
}
