package main

import (
	"fmt"

	"github.com/Anamican/jbooktrader/pkg/config"
	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/schedule"
	"github.com/Anamican/jbooktrader/pkg/strategy"
)

// buildStrategy instantiates the configured strategy with its schedule and
// contract.
func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	sched, err := schedule.New(cfg.Session.StartTime, cfg.Session.EndTime, cfg.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	if cfg.Session.MIC != "" {
		sched = sched.WithCalendar(cfg.Session.MIC)
	}

	var c contract.Contract
	if cfg.Strategy.Expiry != "" {
		c = contract.Futures(cfg.Strategy.Symbol, cfg.Strategy.Exchange, cfg.Strategy.Expiry)
	} else {
		c = contract.Stock(cfg.Strategy.Symbol, cfg.Strategy.Exchange)
	}

	switch cfg.Strategy.Name {
	case "equalizer":
		return strategy.NewEqualizer(c, sched, strategy.EqualizerParams{
			FastPeriod:   cfg.Strategy.FastPeriod,
			SlowPeriod:   cfg.Strategy.SlowPeriod,
			Entry:        cfg.Strategy.Entry,
			BidAskSpread: cfg.Strategy.BidAskSpread,
		}), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy.Name)
	}
}
