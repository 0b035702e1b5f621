// Package backtest replays historical market snapshots through a strategy
// deterministically and reports the outcome.
package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Anamican/jbooktrader/pkg/marketbook"
)

// SnapshotReader yields historical snapshots in timestamp order. Next
// returns io.EOF after the last snapshot. Any other error is fatal to the
// replay.
type SnapshotReader interface {
	Next() (marketbook.MarketSnapshot, error)
	Close() error
}

const timeLayout = "2006-01-02 15:04:05"

// CSVReader reads snapshots from a CSV file with columns
// time,bid,ask,bid_size,ask_size,last_price,volume,balance. Lines starting
// with '#' are comments. Times are parsed in the given location.
type CSVReader struct {
	file     *os.File
	reader   *csv.Reader
	location *time.Location
	line     int
}

// NewCSVReader opens a snapshot CSV file.
func NewCSVReader(path string, location *time.Location) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	if location == nil {
		location = time.UTC
	}

	reader := csv.NewReader(file)
	reader.Comment = '#'
	reader.FieldsPerRecord = 8
	reader.TrimLeadingSpace = true

	return &CSVReader{file: file, reader: reader, location: location}, nil
}

// Next returns the next snapshot, io.EOF at end of file.
func (r *CSVReader) Next() (marketbook.MarketSnapshot, error) {
	record, err := r.reader.Read()
	if err == io.EOF {
		return marketbook.MarketSnapshot{}, io.EOF
	}
	if err != nil {
		return marketbook.MarketSnapshot{}, fmt.Errorf("failed to read data file: %w", err)
	}
	r.line++

	// Skip a header row
	if r.line == 1 && record[0] == "time" {
		return r.Next()
	}

	ts, err := time.ParseInLocation(timeLayout, record[0], r.location)
	if err != nil {
		return marketbook.MarketSnapshot{}, fmt.Errorf("line %d: bad timestamp %q: %w", r.line, record[0], err)
	}

	fields := make([]float64, 7)
	for i := 1; i < 8; i++ {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return marketbook.MarketSnapshot{}, fmt.Errorf("line %d: bad field %q: %w", r.line, record[i], err)
		}
		fields[i-1] = v
	}

	return marketbook.MarketSnapshot{
		Time:      ts,
		Bid:       fields[0],
		Ask:       fields[1],
		BidSize:   int64(fields[2]),
		AskSize:   int64(fields[3]),
		LastPrice: fields[4],
		Volume:    int64(fields[5]),
		Balance:   fields[6],
	}, nil
}

// Close closes the underlying file.
func (r *CSVReader) Close() error {
	return r.file.Close()
}

// SliceReader replays an in-memory snapshot slice, used in tests and
// optimization runs where the data set is already loaded.
type SliceReader struct {
	snapshots []marketbook.MarketSnapshot
	pos       int
}

// NewSliceReader wraps a snapshot slice.
func NewSliceReader(snapshots []marketbook.MarketSnapshot) *SliceReader {
	return &SliceReader{snapshots: snapshots}
}

// Next returns the next snapshot, io.EOF after the last.
func (r *SliceReader) Next() (marketbook.MarketSnapshot, error) {
	if r.pos >= len(r.snapshots) {
		return marketbook.MarketSnapshot{}, io.EOF
	}
	s := r.snapshots[r.pos]
	r.pos++
	return s, nil
}

// Close is a no-op.
func (r *SliceReader) Close() error { return nil }
