package backtest

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Anamican/jbooktrader/pkg/marketbook"
)

// SQLiteReader streams snapshots from a SQLite database. The snapshots table
// holds one row per snapshot:
//
//	CREATE TABLE snapshots (
//	    timestamp_ns INTEGER NOT NULL,
//	    bid          REAL NOT NULL,
//	    ask          REAL NOT NULL,
//	    bid_size     INTEGER NOT NULL,
//	    ask_size     INTEGER NOT NULL,
//	    last_price   REAL NOT NULL,
//	    volume       INTEGER NOT NULL,
//	    balance      REAL NOT NULL
//	);
//
// Rows are read in timestamp order regardless of insertion order.
type SQLiteReader struct {
	db   *sql.DB
	rows *sql.Rows
}

// NewSQLiteReader opens the database and starts the ordered snapshot scan.
// The instrument filter is applied when non-empty and the table has an
// instrument column.
func NewSQLiteReader(path, instrument string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	query := `SELECT timestamp_ns, bid, ask, bid_size, ask_size, last_price, volume, balance
		FROM snapshots ORDER BY timestamp_ns`
	args := []interface{}{}
	if instrument != "" {
		query = `SELECT timestamp_ns, bid, ask, bid_size, ask_size, last_price, volume, balance
			FROM snapshots WHERE instrument = ? ORDER BY timestamp_ns`
		args = append(args, instrument)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot query failed: %w", err)
	}

	return &SQLiteReader{db: db, rows: rows}, nil
}

// Next returns the next snapshot, io.EOF after the last row.
func (r *SQLiteReader) Next() (marketbook.MarketSnapshot, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return marketbook.MarketSnapshot{}, fmt.Errorf("snapshot scan failed: %w", err)
		}
		return marketbook.MarketSnapshot{}, io.EOF
	}

	var (
		tsNs             int64
		bid, ask         float64
		bidSize, askSize int64
		lastPrice        float64
		volume           int64
		balance          float64
	)
	if err := r.rows.Scan(&tsNs, &bid, &ask, &bidSize, &askSize, &lastPrice, &volume, &balance); err != nil {
		return marketbook.MarketSnapshot{}, fmt.Errorf("snapshot row scan failed: %w", err)
	}

	return marketbook.MarketSnapshot{
		Time:      time.Unix(0, tsNs),
		Bid:       bid,
		Ask:       ask,
		BidSize:   bidSize,
		AskSize:   askSize,
		LastPrice: lastPrice,
		Volume:    volume,
		Balance:   balance,
	}, nil
}

// Close releases the row cursor and the database handle.
func (r *SQLiteReader) Close() error {
	r.rows.Close()
	return r.db.Close()
}
