package indicators

import "github.com/Anamican/jbooktrader/pkg/marketbook"

// EMA (Exponential Moving Average) of the mid price.
//
// Formula: EMA_t = α × Price_t + (1-α) × EMA_{t-1}
// where α = 2 / (period + 1) is the smoothing factor.
type EMA struct {
	*BaseIndicator
	period  int
	alpha   float64
	ema     float64
	isFirst bool
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 20
	}
	return &EMA{
		BaseIndicator: NewBaseIndicator("EMA", 1000),
		period:        period,
		alpha:         2.0 / float64(period+1),
		isFirst:       true,
	}
}

// Update updates the EMA with the latest mid price.
func (e *EMA) Update(book *marketbook.MarketBook) {
	snapshot, ok := book.Snapshot()
	if !ok || !snapshot.IsValid() {
		return
	}
	price := snapshot.MidPrice()

	if e.isFirst {
		e.ema = price
		e.isFirst = false
	} else {
		e.ema = e.alpha*price + (1-e.alpha)*e.ema
	}

	e.AddValue(e.ema)
}

// Value returns the current EMA value.
func (e *EMA) Value() float64 {
	return e.ema
}

// Reset resets the indicator.
func (e *EMA) Reset() {
	e.BaseIndicator.Reset()
	e.ema = 0
	e.isFirst = true
}

// IsReady returns true if at least one value has been computed.
func (e *EMA) IsReady() bool {
	return !e.isFirst
}

// Period returns the period.
func (e *EMA) Period() int {
	return e.period
}
