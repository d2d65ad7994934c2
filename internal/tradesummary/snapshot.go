// Package tradesummary resolves tickers and filters the daily CSE trade
// summary. Column names are discovered from the snapshot headers unless an
// explicit mapping is configured.
package tradesummary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Row is one trade summary line keyed by header.
type Row map[string]string

// Snapshot is the daily trade summary as fetched from a Provider.
type Snapshot struct {
	Headers   []string
	Rows      []Row
	FetchedAt time.Time
}

// Columns maps logical fields to header names. Empty values use the
// substring heuristics.
type Columns struct {
	Symbol string
	Volume string
	Name   string
}

var ErrEmptyCSV = errors.New("trade summary csv has no header row")

// LoadCSV parses a trade summary export. Headers are trimmed; short rows
// leave the missing columns empty and extra cells are dropped.
func LoadCSV(r io.Reader) (*Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		// Excel exports prefix the first header with a BOM.
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	snap := &Snapshot{Headers: headers, FetchedAt: time.Now()}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(snap.Rows)+2, err)
		}
		if isBlank(record) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Len reports the number of rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// findColumn returns the header named explicit (case-insensitive) when set,
// otherwise the first header containing any of the substrings.
func (s *Snapshot) findColumn(explicit string, substrings ...string) (string, bool) {
	if s == nil {
		return "", false
	}
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		for _, h := range s.Headers {
			if strings.EqualFold(h, explicit) {
				return h, true
			}
		}
		return "", false
	}
	for _, h := range s.Headers {
		lower := strings.ToLower(h)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return h, true
			}
		}
	}
	return "", false
}

// SymbolColumn is the first header containing "symbol".
func (s *Snapshot) SymbolColumn(cols Columns) (string, bool) {
	return s.findColumn(cols.Symbol, "symbol")
}

// VolumeColumn is the first header containing "volume".
func (s *Snapshot) VolumeColumn(cols Columns) (string, bool) {
	return s.findColumn(cols.Volume, "volume")
}

// NameColumn is the first header containing "company" or "name".
func (s *Snapshot) NameColumn(cols Columns) (string, bool) {
	return s.findColumn(cols.Name, "company", "name")
}
