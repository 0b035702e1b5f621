// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the trader and backtest
// entrypoints.
type Config struct {
	System   SystemConfig   `yaml:"system"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Session  SessionConfig  `yaml:"session"`
	Strategy StrategyConfig `yaml:"strategy"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// SystemConfig contains system-level configuration.
type SystemConfig struct {
	Mode string `yaml:"mode"` // backtest, forwardtest, optimization, trade
}

// GatewayConfig contains broker gateway connection configuration.
type GatewayConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	ClientID   int    `yaml:"client_id"`
	SubAccount string `yaml:"sub_account"`

	// MaxDisconnectionSeconds is the feed outage beyond which the system
	// forces all positions closed on reconnect.
	MaxDisconnectionSeconds int `yaml:"max_disconnection_seconds"`

	// AccountTimeoutSeconds bounds the wait for the account code at connect.
	AccountTimeoutSeconds int `yaml:"account_timeout_seconds"`

	DepthRows int `yaml:"depth_rows"`
}

// SessionConfig contains the trading window configuration.
type SessionConfig struct {
	StartTime string `yaml:"start_time"` // HH:MM:SS
	EndTime   string `yaml:"end_time"`   // HH:MM:SS
	Timezone  string `yaml:"timezone"`   // e.g. "America/New_York"
	MIC       string `yaml:"mic"`        // exchange calendar, e.g. "xcme"; empty disables
}

// StrategyConfig contains the strategy selection and its parameters.
type StrategyConfig struct {
	Name     string `yaml:"name"` // e.g. "equalizer"
	Symbol   string `yaml:"symbol"`
	Exchange string `yaml:"exchange"`
	Expiry   string `yaml:"expiry"`

	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	Entry        float64 `yaml:"entry"`
	BidAskSpread float64 `yaml:"bid_ask_spread"`
}

// BacktestConfig contains the historical data source for replays.
type BacktestConfig struct {
	Source string `yaml:"source"` // csv or sqlite
	Path   string `yaml:"path"`

	// Instrument filters sqlite sources with multi-instrument tables.
	Instrument string `yaml:"instrument"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.System.Mode == "" {
		c.System.Mode = "forwardtest"
	}
	switch c.System.Mode {
	case "backtest", "forwardtest", "optimization", "trade":
	default:
		return fmt.Errorf("system.mode must be 'backtest', 'forwardtest', 'optimization', or 'trade'")
	}

	if c.Gateway.Host == "" {
		c.Gateway.Host = "localhost"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 4222
	}
	if c.Gateway.ClientID == 0 {
		c.Gateway.ClientID = 1
	}
	if c.Gateway.MaxDisconnectionSeconds == 0 {
		c.Gateway.MaxDisconnectionSeconds = 300
	}
	if c.Gateway.AccountTimeoutSeconds == 0 {
		c.Gateway.AccountTimeoutSeconds = 30
	}
	if c.Gateway.DepthRows == 0 {
		c.Gateway.DepthRows = 10
	}

	if c.Session.StartTime == "" {
		c.Session.StartTime = "09:30:00"
	}
	if c.Session.EndTime == "" {
		c.Session.EndTime = "16:00:00"
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = "America/New_York"
	}

	if c.Strategy.Name == "" {
		c.Strategy.Name = "equalizer"
	}
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if c.Strategy.FastPeriod == 0 {
		c.Strategy.FastPeriod = 60
	}
	if c.Strategy.SlowPeriod == 0 {
		c.Strategy.SlowPeriod = 600
	}
	if c.Strategy.BidAskSpread == 0 {
		c.Strategy.BidAskSpread = 0.25
	}

	if c.System.Mode == "backtest" || c.System.Mode == "optimization" {
		if c.Backtest.Path == "" {
			return fmt.Errorf("backtest.path is required in %s mode", c.System.Mode)
		}
		if c.Backtest.Source == "" {
			c.Backtest.Source = "csv"
		}
		if c.Backtest.Source != "csv" && c.Backtest.Source != "sqlite" {
			return fmt.Errorf("backtest.source must be 'csv' or 'sqlite'")
		}
	}

	return nil
}
