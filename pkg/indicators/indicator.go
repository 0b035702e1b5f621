// Package indicators provides technical indicators computed from a market
// book, plus the manager that gates strategy decisions on indicator warm-up.
package indicators

import (
	"sync"

	"github.com/Anamican/jbooktrader/pkg/marketbook"
)

// Indicator is the base interface for all technical indicators.
type Indicator interface {
	// Update recalculates the indicator from the book's latest snapshot
	Update(book *marketbook.MarketBook)

	// Value returns the current indicator value
	Value() float64

	// Reset resets the indicator to initial state
	Reset()

	// Name returns the indicator name
	Name() string

	// IsReady returns true if the indicator has sufficient warm-up data
	IsReady() bool
}

// BaseIndicator provides common functionality for indicators.
type BaseIndicator struct {
	name       string
	values     []float64
	maxHistory int
	mu         sync.RWMutex
}

// NewBaseIndicator creates a new base indicator.
func NewBaseIndicator(name string, maxHistory int) *BaseIndicator {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &BaseIndicator{
		name:       name,
		values:     make([]float64, 0, maxHistory),
		maxHistory: maxHistory,
	}
}

// Name returns the indicator name.
func (b *BaseIndicator) Name() string {
	return b.name
}

// Value returns the most recent value.
func (b *BaseIndicator) Value() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.values) == 0 {
		return 0.0
	}
	return b.values[len(b.values)-1]
}

// Values returns all recorded values.
func (b *BaseIndicator) Values() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]float64, len(b.values))
	copy(result, b.values)
	return result
}

// AddValue appends a value to the series, discarding the oldest beyond
// maxHistory.
func (b *BaseIndicator) AddValue(value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values = append(b.values, value)
	if len(b.values) > b.maxHistory {
		b.values = b.values[1:]
	}
}

// Reset clears all values.
func (b *BaseIndicator) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = b.values[:0]
}

// Count returns the number of recorded values.
func (b *BaseIndicator) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
