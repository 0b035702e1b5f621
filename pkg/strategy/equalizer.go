package strategy

import (
	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/indicators"
	"github.com/Anamican/jbooktrader/pkg/schedule"
)

// EqualizerParams configures the Equalizer strategy.
type EqualizerParams struct {
	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	Entry        float64 `yaml:"entry"`
	BidAskSpread float64 `yaml:"bid_ask_spread"`
}

// Equalizer trades on the combined velocity of book depth balance and mid
// price. When the combined signal exceeds the entry threshold it goes long
// one contract; below the negative threshold it goes short one.
type Equalizer struct {
	*BaseStrategy
	balanceVelocity *indicators.BalanceVelocity
	priceVelocity   *indicators.PriceVelocity
	entry           float64
}

// NewEqualizer creates an Equalizer for the given contract and schedule.
func NewEqualizer(c contract.Contract, sched *schedule.TradingSchedule, params EqualizerParams) *Equalizer {
	s := &Equalizer{
		BaseStrategy:    NewBaseStrategy("Equalizer", c, sched, params.BidAskSpread),
		balanceVelocity: indicators.NewBalanceVelocity(params.FastPeriod, params.SlowPeriod),
		priceVelocity:   indicators.NewPriceVelocity(params.FastPeriod, params.SlowPeriod),
		entry:           params.Entry,
	}
	s.Indicators().Add(s.balanceVelocity)
	s.Indicators().Add(s.priceVelocity)
	return s
}

// OnBookChange decides the target position from the combined velocities.
func (s *Equalizer) OnBookChange() {
	signal := s.balanceVelocity.Value() + s.priceVelocity.Value()
	if signal >= s.entry {
		s.SetPosition(1)
	} else if signal <= -s.entry {
		s.SetPosition(-1)
	}
}
