package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"otodom-scraper/models"
)

// Mode selects how OpenDataset treats an existing file.
type Mode int

const (
	// ModeFresh creates or truncates the file and writes a header.
	ModeFresh Mode = iota
	// ModeAppend adds rows to an existing file and never writes a header.
	ModeAppend
)

// ErrColumnCount is returned for rows that do not match the schema width.
var ErrColumnCount = errors.New("row width does not match schema")

// DatasetWriter appends listing rows to a delimited file in a fixed column
// order. Every row is flushed as soon as it is written. It is safe for
// concurrent use.
type DatasetWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	schema models.Schema
}

// OpenDataset opens path for writing rows in schema order. In append mode
// the caller must have checked that the file's header matches schema.
// Intermediate directories are created automatically.
func OpenDataset(path string, schema models.Schema, mode Mode, delimiter rune) (*DatasetWriter, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("dataset: empty schema")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create output dir: %w", err)
	}

	var (
		f   *os.File
		err error
	)
	switch mode {
	case ModeFresh:
		f, err = os.Create(path)
	case ModeAppend:
		f, err = os.OpenFile(path, os.O_RDWR, 0o644)
		if err == nil {
			err = trimPartialRow(f)
		}
	default:
		err = fmt.Errorf("unknown mode %d", mode)
	}
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = delimiter
	d := &DatasetWriter{file: f, writer: w, schema: schema}

	if mode == ModeFresh {
		if err := d.WriteHeader(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return d, nil
}

// Schema returns the column order rows are written in.
func (d *DatasetWriter) Schema() models.Schema {
	return d.schema
}

// WriteHeader writes the capitalized column names.
func (d *DatasetWriter) WriteHeader() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writer.Write(d.schema.Headers()); err != nil {
		return fmt.Errorf("dataset: write header: %w", err)
	}
	d.writer.Flush()
	return d.writer.Error()
}

// WriteRow writes one row of values in schema order. Nil values become
// empty cells so every row has as many cells as the header.
func (d *DatasetWriter) WriteRow(values []any) error {
	if len(values) != len(d.schema) {
		return fmt.Errorf("dataset: %w: got %d values for %d columns",
			ErrColumnCount, len(values), len(d.schema))
	}

	row := make([]string, len(values))
	for i, v := range values {
		row[i] = models.FormatValue(v)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writer.Write(row); err != nil {
		return fmt.Errorf("dataset: write row: %w", err)
	}
	d.writer.Flush()
	if err := d.writer.Error(); err != nil {
		return fmt.Errorf("dataset: flush: %w", err)
	}
	return nil
}

// WriteListing projects l onto the schema and writes it.
func (d *DatasetWriter) WriteListing(l *models.Listing) error {
	return d.WriteRow(d.schema.Project(l))
}

// Close flushes and closes the underlying file.
func (d *DatasetWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writer.Flush()
	return d.file.Close()
}

// trimPartialRow drops a last line left unterminated by an interrupted run
// and positions f at the end for appending.
func trimPartialRow(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	end := size
	buf := make([]byte, 4096)
	for end > 0 {
		n := int64(len(buf))
		if n > end {
			n = end
		}
		if _, err := f.ReadAt(buf[:n], end-n); err != nil && err != io.EOF {
			return err
		}
		if i := lastNewline(buf[:n]); i >= 0 {
			end = end - n + int64(i) + 1
			break
		}
		end -= n
	}

	if end != size {
		if err := f.Truncate(end); err != nil {
			return err
		}
	}
	_, err = f.Seek(end, io.SeekStart)
	return err
}

func lastNewline(b []byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == '\n' {
			return i
		}
	}
	return -1
}
