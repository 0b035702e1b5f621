package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Anamican/jbooktrader/pkg/config"
	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/gateway/natsgw"
	"github.com/Anamican/jbooktrader/pkg/trader"
)

const appName = "BookTrader"

var (
	configFile = flag.String("config", "./config/trader.yaml", "Configuration file path")
	mode       = flag.String("mode", "", "Run mode: forwardtest, trade (overrides config)")
)

func main() {
	flag.Parse()

	// .env overrides are optional
	if err := godotenv.Load(); err == nil {
		log.Printf("[%s] Loaded environment overrides from .env", appName)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}
	applyEnvOverrides(cfg)
	if *mode != "" {
		cfg.System.Mode = *mode
	}

	runMode, err := parseMode(cfg.System.Mode)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}

	strat, err := buildStrategy(cfg)
	if err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}

	disp := dispatcher.New(runMode, dispatcher.NewEventReport())
	assistant := trader.New(trader.Config{
		Host:             cfg.Gateway.Host,
		Port:             cfg.Gateway.Port,
		ClientID:         cfg.Gateway.ClientID,
		SubAccount:       cfg.Gateway.SubAccount,
		MaxDisconnection: time.Duration(cfg.Gateway.MaxDisconnectionSeconds) * time.Second,
		AccountTimeout:   time.Duration(cfg.Gateway.AccountTimeoutSeconds) * time.Second,
		DepthRows:        cfg.Gateway.DepthRows,
		ConfirmLiveAccount: func(code string) bool {
			// Headless operation: live accounts must be confirmed up front
			return os.Getenv("BOOKTRADER_CONFIRM_LIVE") == "1"
		},
	}, natsgw.New(), disp)

	if err := assistant.Connect(); err != nil {
		log.Fatalf("[%s] %v", appName, err)
	}
	defer assistant.Disconnect()

	assistant.AddStrategy(strat)
	log.Printf("[%s] Running %s on %s in %s mode",
		appName, strat.Name(), strat.Contract().Instrument(), runMode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[%s] Received %s, shutting down", appName, sig)

	assistant.RemoveAllStrategies()
}

func parseMode(mode string) (dispatcher.Mode, error) {
	switch mode {
	case "forwardtest":
		return dispatcher.ForwardTest, nil
	case "trade":
		return dispatcher.Trade, nil
	default:
		return 0, fmt.Errorf("mode %q is not runnable live (use cmd/backtest for backtest/optimization)", mode)
	}
}

// applyEnvOverrides lets deployment environments override connection
// settings without editing the config file.
func applyEnvOverrides(cfg *config.Config) {
	if host := os.Getenv("BOOKTRADER_HOST"); host != "" {
		cfg.Gateway.Host = host
	}
	if port := os.Getenv("BOOKTRADER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = p
		}
	}
	if account := os.Getenv("BOOKTRADER_SUB_ACCOUNT"); account != "" {
		cfg.Gateway.SubAccount = account
	}
}
