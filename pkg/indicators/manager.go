package indicators

import "github.com/Anamican/jbooktrader/pkg/marketbook"

// Manager owns the indicator set of one strategy and gates the strategy's
// decision callback on indicator warm-up.
type Manager struct {
	indicators []Indicator
}

// NewManager creates an empty indicator manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add registers an indicator.
func (m *Manager) Add(indicator Indicator) {
	m.indicators = append(m.indicators, indicator)
}

// UpdateAll recalculates every indicator against the book.
func (m *Manager) UpdateAll(book *marketbook.MarketBook) {
	for _, indicator := range m.indicators {
		indicator.Update(book)
	}
}

// HasValidIndicators reports whether every registered indicator has
// sufficient warm-up data. An empty set is valid.
func (m *Manager) HasValidIndicators() bool {
	for _, indicator := range m.indicators {
		if !indicator.IsReady() {
			return false
		}
	}
	return true
}

// ResetAll resets all indicators.
func (m *Manager) ResetAll() {
	for _, indicator := range m.indicators {
		indicator.Reset()
	}
}

// Indicators returns the registered indicators.
func (m *Manager) Indicators() []Indicator {
	return m.indicators
}
