package indicators

import "github.com/Anamican/jbooktrader/pkg/marketbook"

// velocity measures the rate of change of an input series as the difference
// between a fast and a slow exponential smoothing of it. Warm-up requires
// slowPeriod samples before the value is considered valid.
type velocity struct {
	*BaseIndicator
	fastAlpha  float64
	slowAlpha  float64
	slowPeriod int
	fast       float64
	slow       float64
	samples    int
}

func newVelocity(name string, fastPeriod, slowPeriod int) *velocity {
	if fastPeriod <= 0 {
		fastPeriod = 1
	}
	if slowPeriod <= fastPeriod {
		slowPeriod = fastPeriod + 1
	}
	return &velocity{
		BaseIndicator: NewBaseIndicator(name, 1000),
		fastAlpha:     2.0 / float64(fastPeriod+1),
		slowAlpha:     2.0 / float64(slowPeriod+1),
		slowPeriod:    slowPeriod,
	}
}

func (v *velocity) update(input float64) {
	if v.samples == 0 {
		v.fast = input
		v.slow = input
	} else {
		v.fast += v.fastAlpha * (input - v.fast)
		v.slow += v.slowAlpha * (input - v.slow)
	}
	v.samples++
	v.AddValue(v.fast - v.slow)
}

// Value returns the fast-slow smoothing difference.
func (v *velocity) Value() float64 {
	return v.fast - v.slow
}

// IsReady returns true once the slow smoothing is warmed up.
func (v *velocity) IsReady() bool {
	return v.samples >= v.slowPeriod
}

// Reset resets the indicator.
func (v *velocity) Reset() {
	v.BaseIndicator.Reset()
	v.fast = 0
	v.slow = 0
	v.samples = 0
}

// BalanceVelocity measures the velocity of the book's depth balance.
type BalanceVelocity struct {
	*velocity
}

// NewBalanceVelocity creates a balance velocity indicator with the given
// fast and slow smoothing periods.
func NewBalanceVelocity(fastPeriod, slowPeriod int) *BalanceVelocity {
	return &BalanceVelocity{velocity: newVelocity("BalanceVelocity", fastPeriod, slowPeriod)}
}

// Update updates the indicator with the latest depth balance.
func (b *BalanceVelocity) Update(book *marketbook.MarketBook) {
	snapshot, ok := book.Snapshot()
	if !ok {
		return
	}
	b.update(snapshot.Balance)
}

// PriceVelocity measures the velocity of the mid price.
type PriceVelocity struct {
	*velocity
}

// NewPriceVelocity creates a price velocity indicator with the given fast
// and slow smoothing periods.
func NewPriceVelocity(fastPeriod, slowPeriod int) *PriceVelocity {
	return &PriceVelocity{velocity: newVelocity("PriceVelocity", fastPeriod, slowPeriod)}
}

// Update updates the indicator with the latest mid price.
func (p *PriceVelocity) Update(book *marketbook.MarketBook) {
	snapshot, ok := book.Snapshot()
	if !ok || !snapshot.IsValid() {
		return
	}
	p.update(snapshot.MidPrice())
}
