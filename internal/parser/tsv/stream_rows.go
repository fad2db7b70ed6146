// Package tsv implements the streaming row normalizer for the board's
// tab-delimited disclosure extracts. It decodes the legacy Latin-1 byte
// stream permissively, trims and null-converts each cell, applies the
// dataset's positional recodings, and emits pooled rows aligned to the
// driver's column list. The stream is consumed exactly once; rows that
// cannot be aligned are dropped through the error callback, never emitted
// misaligned.
package tsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"sunshine/internal/records"
)

// Options configures stream behavior. Zero values select the defaults used by
// every board extract: tab delimiter with a single header line.
type Options struct {
	// Comma is the field delimiter; zero means '\t'.
	Comma rune

	// NoHeader disables skipping of the first line.
	NoHeader bool
}

// StreamRows reads delimited rows from src, normalizes each one, and sends
// pooled *records.Row values on out. Cells are trimmed and blank cells become
// nil before recode runs; recode may insert, drop, or rewrite positional
// cells (pass nil for datasets without recodings). Rows whose cell count does
// not match len(columns) after recode are reported through onErr and skipped.
//
// The source is decoded as Latin-1, so arbitrary legacy bytes never abort the
// stream. StreamRows closes src before returning and does not close out.
func StreamRows(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	recode func(cells []any) []any,
	opt Options,
	out chan<- *records.Row,
	onErr func(line int, err error),
) error {
	defer src.Close()

	comma := opt.Comma
	if comma == 0 {
		comma = '\t'
	}

	// Latin-1 maps every byte, which is exactly the permissive decode the
	// legacy extracts need.
	cr := csv.NewReader(transform.NewReader(src, charmap.ISO8859_1.NewDecoder()))
	cr.Comma = comma
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	line := 0
	read := func() ([]string, error) { line++; return cr.Read() }

	if !opt.NoHeader {
		if _, err := read(); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read header: %w", err)
		}
	}

	const logEveryN = 50_000
	emitted := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("read row: %w", err))
			}
			continue
		}

		cells := normalizeCells(rec)
		if cells == nil {
			continue // nothing left after trimming
		}
		if recode != nil {
			cells = recode(cells)
		}
		if len(cells) != len(columns) {
			if onErr != nil {
				onErr(line, fmt.Errorf("cell count %d does not match %d columns", len(cells), len(columns)))
			}
			continue
		}

		row := records.Get(len(columns))
		copy(row.V, cells)
		row.Line = line

		select {
		case out <- row:
			emitted++
			if emitted%logEveryN == 0 {
				log.Printf("normalizer: line=%d emitted=%d", line, emitted)
			}
		case <-ctx.Done():
			row.Free()
			return ctx.Err()
		}
	}
}

// normalizeCells trims each raw cell and converts blanks to nil. It returns
// nil when the record holds no content at all (a bare delimiter-free blank
// line), which callers skip rather than emit as an empty record.
func normalizeCells(rec []string) []any {
	if len(rec) == 0 {
		return nil
	}
	if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
		return nil
	}
	cells := make([]any, len(rec))
	for i, c := range rec {
		c = strings.TrimSpace(c)
		if c == "" {
			cells[i] = nil
		} else {
			cells[i] = c
		}
	}
	return cells
}
