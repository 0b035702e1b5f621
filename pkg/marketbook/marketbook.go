// Package marketbook holds per-instrument market state: an ordered,
// append-only sequence of market snapshots plus the most recent one.
package marketbook

import (
	"fmt"
	"sync"
	"time"
)

// MarketSnapshot is a point-in-time view of the top of the order book.
type MarketSnapshot struct {
	Time      time.Time
	Bid       float64
	Ask       float64
	BidSize   int64
	AskSize   int64
	LastPrice float64
	Volume    int64
	// Balance is the depth balance of the book in [-100, 100], where positive
	// values mean more size on the bid side.
	Balance float64
}

// MidPrice returns the bid/ask midpoint.
func (s MarketSnapshot) MidPrice() float64 {
	return (s.Bid + s.Ask) / 2.0
}

// Spread returns the bid-ask spread.
func (s MarketSnapshot) Spread() float64 {
	return s.Ask - s.Bid
}

// IsValid reports whether the snapshot carries a usable two-sided quote.
func (s MarketSnapshot) IsValid() bool {
	return s.Bid > 0 && s.Ask > 0 && s.Ask >= s.Bid
}

func (s MarketSnapshot) String() string {
	return fmt.Sprintf("%s bid=%.4f ask=%.4f balance=%.1f",
		s.Time.Format("2006-01-02 15:04:05"), s.Bid, s.Ask, s.Balance)
}

// MarketBook is the ordered snapshot history for one instrument. One book is
// created per instrument and shared by all strategies trading it.
type MarketBook struct {
	instrument string
	location   *time.Location

	mu        sync.RWMutex
	snapshots []MarketSnapshot
}

// New creates an empty market book for an instrument. The location is the
// time zone of the instrument's trading schedule.
func New(instrument string, location *time.Location) *MarketBook {
	if location == nil {
		location = time.UTC
	}
	return &MarketBook{
		instrument: instrument,
		location:   location,
		snapshots:  make([]MarketSnapshot, 0, 1024),
	}
}

// Instrument returns the instrument key this book belongs to.
func (b *MarketBook) Instrument() string {
	return b.instrument
}

// Location returns the book's time zone.
func (b *MarketBook) Location() *time.Location {
	return b.location
}

// Add appends a snapshot to the history.
func (b *MarketBook) Add(snapshot MarketSnapshot) {
	b.mu.Lock()
	b.snapshots = append(b.snapshots, snapshot)
	b.mu.Unlock()
}

// Snapshot returns the most recent snapshot. The second return value is false
// while the book is empty.
func (b *MarketBook) Snapshot() (MarketSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.snapshots) == 0 {
		return MarketSnapshot{}, false
	}
	return b.snapshots[len(b.snapshots)-1], true
}

// Size returns the number of snapshots recorded.
func (b *MarketBook) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}

// IsEmpty reports whether the book has no snapshots yet.
func (b *MarketBook) IsEmpty() bool {
	return b.Size() == 0
}

// At returns the snapshot at index i in arrival order.
func (b *MarketBook) At(i int) MarketSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshots[i]
}

// Reset clears the snapshot history.
func (b *MarketBook) Reset() {
	b.mu.Lock()
	b.snapshots = b.snapshots[:0]
	b.mu.Unlock()
}
