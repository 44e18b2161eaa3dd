// Package ingest decodes uploaded transaction files into raw records.
//
// Reading is chunked and cooperative: rows are accumulated into batches and
// handed to the caller one batch at a time, with the context checked at every
// batch boundary. A cancelled upload commits nothing downstream because the
// caller only sees whole batches.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"paydash/internal/models"
)

var (
	ErrEmptyFile       = errors.New("file contains no rows")
	ErrNoHeader        = errors.New("file has no header row")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrTooManyRows     = errors.New("file exceeds the row limit")
)

// Reader streams raw records out of a CSV document.
type Reader struct {
	BatchSize int
	MaxRows   int
}

// SupportedExtension reports whether the uploaded filename looks like a
// format this package can decode.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return true
	}
	return false
}

// Read decodes r and invokes fn once per batch of records, preserving row
// order. It stops at the first batch error, on context cancellation, or when
// the row limit is exceeded. The header row names the columns; cells beyond
// the header width are dropped and short rows leave their columns absent.
func (rd *Reader) Read(ctx context.Context, r io.Reader, fn func(batch []models.RawRecord) error) (int, error) {
	batchSize := rd.BatchSize
	if batchSize <= 0 {
		batchSize = 5000
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return 0, ErrNoHeader
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	total := 0
	batch := make([]models.RawRecord, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]models.RawRecord, 0, batchSize)
		return nil
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("read row %d: %w", total+1, err)
		}

		record := make(models.RawRecord, len(header))
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			record[header[i]] = strings.TrimSpace(cell)
		}

		batch = append(batch, record)
		total++

		if rd.MaxRows > 0 && total > rd.MaxRows {
			return total, ErrTooManyRows
		}

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}

	if total == 0 {
		return 0, ErrEmptyFile
	}

	return total, nil
}
