// Package position reconciles a strategy's desired target position against
// its actual position, issuing at most one trade intent per evaluation tick.
package position

import "sync"

// Side is the direction of a market order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Executor submits a market order for the strategy this manager belongs to.
// The trader assistant binds itself here when the strategy is registered.
type Executor interface {
	PlaceMarketOrder(quantity int, side Side)
}

// Manager tracks target vs. actual position and realized P&L for one
// strategy.
type Manager struct {
	mu                sync.Mutex
	executor          Executor
	targetPosition    int
	currentPosition   int
	expectedFillPrice float64
	avgFillPrice      float64
	realizedPnL       float64
	trades            int
}

// NewManager creates a position manager. The executor may be bound later via
// SetExecutor.
func NewManager(executor Executor) *Manager {
	return &Manager{executor: executor}
}

// SetExecutor binds the order submitter.
func (m *Manager) SetExecutor(executor Executor) {
	m.mu.Lock()
	m.executor = executor
	m.mu.Unlock()
}

// SetTargetPosition records the position the strategy wants to hold.
func (m *Manager) SetTargetPosition(target int) {
	m.mu.Lock()
	m.targetPosition = target
	m.mu.Unlock()
}

// TargetPosition returns the desired position.
func (m *Manager) TargetPosition() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targetPosition
}

// CurrentPosition returns the actual position.
func (m *Manager) CurrentPosition() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentPosition
}

// SetExpectedFillPrice records the fill price the coordinator expects for
// the order in flight.
func (m *Manager) SetExpectedFillPrice(price float64) {
	m.mu.Lock()
	m.expectedFillPrice = price
	m.mu.Unlock()
}

// ExpectedFillPrice returns the recorded expected fill price.
func (m *Manager) ExpectedFillPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expectedFillPrice
}

// Trade reconciles target against actual position, submitting zero or one
// market order. Without a bound executor it is a no-op.
func (m *Manager) Trade() {
	m.mu.Lock()
	quantity := m.targetPosition - m.currentPosition
	executor := m.executor
	m.mu.Unlock()

	if quantity == 0 || executor == nil {
		return
	}

	if quantity > 0 {
		executor.PlaceMarketOrder(quantity, Buy)
	} else {
		executor.PlaceMarketOrder(-quantity, Sell)
	}
}

// Fill applies an execution to the position. Quantity is signed: positive
// for a buy, negative for a sell. Realized P&L accrues when the fill closes
// existing exposure.
func (m *Manager) Fill(quantity int, price float64) {
	if quantity == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.currentPosition
	m.currentPosition += quantity
	m.trades++

	if old != 0 && sign(old) != sign(quantity) {
		closed := min(abs(quantity), abs(old))
		m.realizedPnL += float64(closed) * (price - m.avgFillPrice) * float64(sign(old))
		if sign(m.currentPosition) == sign(quantity) && m.currentPosition != 0 {
			// Position flipped through flat: residual opens at this price
			m.avgFillPrice = price
		}
		return
	}

	// Opening or adding: weighted average entry price
	total := m.avgFillPrice*float64(abs(old)) + price*float64(abs(quantity))
	m.avgFillPrice = total / float64(abs(old)+abs(quantity))
}

// RealizedPnL returns the realized profit and loss.
func (m *Manager) RealizedPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.realizedPnL
}

// AvgFillPrice returns the average entry price of the open position.
func (m *Manager) AvgFillPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avgFillPrice
}

// Trades returns the number of fills applied.
func (m *Manager) Trades() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades
}

// Reset clears all position state.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetPosition = 0
	m.currentPosition = 0
	m.expectedFillPrice = 0
	m.avgFillPrice = 0
	m.realizedPnL = 0
	m.trades = 0
}

func sign(x int) int {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
