package indicators

import "github.com/Anamican/jbooktrader/pkg/marketbook"

// DepthBalance exposes the book's depth balance, the bid/ask size imbalance
// in [-100, 100].
type DepthBalance struct {
	*BaseIndicator
}

// NewDepthBalance creates a new depth balance indicator.
func NewDepthBalance() *DepthBalance {
	return &DepthBalance{
		BaseIndicator: NewBaseIndicator("DepthBalance", 1000),
	}
}

// Update reads the balance from the latest snapshot.
func (d *DepthBalance) Update(book *marketbook.MarketBook) {
	snapshot, ok := book.Snapshot()
	if !ok {
		return
	}
	d.AddValue(snapshot.Balance)
}

// IsReady returns true once a snapshot has been seen.
func (d *DepthBalance) IsReady() bool {
	return d.Count() > 0
}
