// Package strategy defines the trading strategy contract and the shared base
// implementation strategies embed.
package strategy

import (
	"sync"
	"time"

	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/indicators"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
	"github.com/Anamican/jbooktrader/pkg/position"
	"github.com/Anamican/jbooktrader/pkg/schedule"
)

// Strategy is the interface all trading strategies implement. The trader
// assistant owns the life cycle: it assigns the id, binds the market book
// and position executor, and drives OnBookChange on every snapshot.
type Strategy interface {
	// Name returns the strategy name
	Name() string

	// Contract returns the instrument the strategy trades
	Contract() contract.Contract

	// TradingSchedule returns the window inside which the strategy may trade
	TradingSchedule() *schedule.TradingSchedule

	// MarketBook returns the book the strategy reads from
	MarketBook() *marketbook.MarketBook

	// SetMarketBook binds the book; called once at registration
	SetMarketBook(book *marketbook.MarketBook)

	// Indicators returns the indicator set updated on every snapshot
	Indicators() *indicators.Manager

	// Position returns the strategy's position manager
	Position() *position.Manager

	// BidAskSpread returns the expected bid-ask spread used to estimate
	// fill prices for simulated executions
	BidAskSpread() float64

	// ID returns the registration id assigned by the trader assistant
	ID() int

	// SetID assigns the registration id
	SetID(id int)

	// IsActive reports whether the strategy is inside its trading window
	IsActive() bool

	// SetActive flips the trading-window flag
	SetActive(active bool)

	// Time returns the strategy clock, which tracks snapshot time during
	// replay and wall time when live
	Time() time.Time

	// SetTime advances the strategy clock
	SetTime(t time.Time)

	// ClosePosition targets flat; the coordinator calls it outside the
	// trading window and at end of replay
	ClosePosition()

	// OnBookChange is invoked after indicators are updated for a new
	// snapshot; the strategy decides its target position here
	OnBookChange()
}

// BaseStrategy carries the state common to all strategies. Embed it and
// implement OnBookChange.
type BaseStrategy struct {
	mu           sync.RWMutex
	name         string
	contract     contract.Contract
	tradingSched *schedule.TradingSchedule
	book         *marketbook.MarketBook
	indicators   *indicators.Manager
	position     *position.Manager
	bidAskSpread float64
	id           int
	active       bool
	now          time.Time
}

// NewBaseStrategy creates the shared strategy state.
func NewBaseStrategy(name string, c contract.Contract, sched *schedule.TradingSchedule, bidAskSpread float64) *BaseStrategy {
	return &BaseStrategy{
		name:         name,
		contract:     c,
		tradingSched: sched,
		indicators:   indicators.NewManager(),
		position:     position.NewManager(nil),
		bidAskSpread: bidAskSpread,
	}
}

// Name returns the strategy name.
func (s *BaseStrategy) Name() string {
	return s.name
}

// Contract returns the traded instrument.
func (s *BaseStrategy) Contract() contract.Contract {
	return s.contract
}

// TradingSchedule returns the trading window.
func (s *BaseStrategy) TradingSchedule() *schedule.TradingSchedule {
	return s.tradingSched
}

// MarketBook returns the bound book, nil before registration.
func (s *BaseStrategy) MarketBook() *marketbook.MarketBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book
}

// SetMarketBook binds the book.
func (s *BaseStrategy) SetMarketBook(book *marketbook.MarketBook) {
	s.mu.Lock()
	s.book = book
	s.mu.Unlock()
}

// Indicators returns the indicator set.
func (s *BaseStrategy) Indicators() *indicators.Manager {
	return s.indicators
}

// Position returns the position manager.
func (s *BaseStrategy) Position() *position.Manager {
	return s.position
}

// BidAskSpread returns the expected bid-ask spread.
func (s *BaseStrategy) BidAskSpread() float64 {
	return s.bidAskSpread
}

// ID returns the registration id.
func (s *BaseStrategy) ID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetID assigns the registration id.
func (s *BaseStrategy) SetID(id int) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// IsActive reports the trading-window flag.
func (s *BaseStrategy) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive flips the trading-window flag.
func (s *BaseStrategy) SetActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

// Time returns the strategy clock.
func (s *BaseStrategy) Time() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// SetTime advances the strategy clock.
func (s *BaseStrategy) SetTime(t time.Time) {
	s.mu.Lock()
	s.now = t
	s.mu.Unlock()
}

// SetPosition records the desired position.
func (s *BaseStrategy) SetPosition(target int) {
	s.position.SetTargetPosition(target)
}

// ClosePosition targets flat.
func (s *BaseStrategy) ClosePosition() {
	s.position.SetTargetPosition(0)
}
