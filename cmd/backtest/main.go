package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/Anamican/jbooktrader/pkg/backtest"
	"github.com/Anamican/jbooktrader/pkg/config"
	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/schedule"
	"github.com/Anamican/jbooktrader/pkg/strategy"
)

const appName = "Backtest"

var (
	configFile = flag.String("config", "./config/trader.yaml", "Configuration file path")
	dataPath   = flag.String("data", "", "Historical data path (overrides config)")
	source     = flag.String("source", "", "Data source: csv or sqlite (overrides config)")
)

func main() {
	flag.Parse()
	godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}
	if *dataPath != "" {
		cfg.Backtest.Path = *dataPath
	}
	if *source != "" {
		cfg.Backtest.Source = *source
	}
	if cfg.Backtest.Path == "" {
		log.Fatalf("[%s] no historical data path configured", appName)
	}

	strat, err := buildStrategy(cfg)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}

	reader, err := openReader(cfg, strat)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}
	defer reader.Close()

	disp := dispatcher.New(dispatcher.BackTest, dispatcher.NewEventReport())
	engine := backtest.NewEngine(reader, disp)

	result, err := engine.Execute(strat)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}
	log.Printf("[%s] %s: %s", appName, strat.Name(), result)
}

func openReader(cfg *config.Config, strat strategy.Strategy) (backtest.SnapshotReader, error) {
	switch cfg.Backtest.Source {
	case "sqlite":
		instrument := cfg.Backtest.Instrument
		if instrument == "" {
			instrument = strat.Contract().Instrument()
		}
		return backtest.NewSQLiteReader(cfg.Backtest.Path, instrument)
	default:
		return backtest.NewCSVReader(cfg.Backtest.Path, strat.TradingSchedule().Location())
	}
}

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
