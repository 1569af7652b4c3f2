package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"otodom-scraper/models"
)

// ErrCorruptDataset means an existing dataset cannot be resumed safely.
var ErrCorruptDataset = errors.New("dataset cannot be resumed")

// Dataset is what a previous run left behind.
type Dataset struct {
	Schema models.Schema
	Links  []string
	Rows   int
}

// LoadDataset reads the header and link column of an existing dataset. A
// missing file yields an error matching os.ErrNotExist. An unterminated last
// line is ignored, as OpenDataset drops it before appending.
func LoadDataset(path string, delimiter rune) (*Dataset, error) {
	header, rows, err := ReadRows(path, delimiter)
	if err != nil {
		return nil, err
	}

	schema, err := models.SchemaFromHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrCorruptDataset, path, err)
	}
	linkIdx := schema.Index(models.FieldLink)
	if linkIdx < 0 {
		return nil, fmt.Errorf("%w: %s: no %s column", ErrCorruptDataset, path, models.FieldLink.Header())
	}

	ds := &Dataset{Schema: schema, Rows: len(rows)}
	for _, row := range rows {
		if link := strings.TrimSpace(row[linkIdx]); link != "" {
			ds.Links = append(ds.Links, link)
		}
	}
	return ds, nil
}

// ReadRows returns the header and data rows of a dataset file. Every row is
// checked to have as many cells as the header.
func ReadRows(path string, delimiter rune) ([]string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}
	data = completeLines(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %s: empty file", ErrCorruptDataset, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptDataset, path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptDataset, path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func completeLines(data []byte) []byte {
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return data
	}
	return data[:bytes.LastIndexByte(data, '\n')+1]
}

// ReadListings parses every row of a dataset back into listings. Only the
// file's columns are set on each listing.
func ReadListings(path string, delimiter rune) ([]*models.Listing, models.Schema, error) {
	header, rows, err := ReadRows(path, delimiter)
	if err != nil {
		return nil, nil, err
	}
	schema, err := models.SchemaFromHeader(header)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: header: %v", ErrCorruptDataset, path, err)
	}

	listings := make([]*models.Listing, 0, len(rows))
	for i, row := range rows {
		l := &models.Listing{}
		for j, f := range schema {
			if err := l.SetCell(f, row[j]); err != nil {
				return nil, nil, fmt.Errorf("%w: %s: row %d: %v", ErrCorruptDataset, path, i+2, err)
			}
		}
		listings = append(listings, l)
	}
	return listings, schema, nil
}
