// Package contract defines tradeable instruments and their derived identity keys.
package contract

import "strings"

// Contract describes a tradeable instrument as requested by a strategy.
// Optional fields are empty strings and are omitted from the derived
// instrument key.
type Contract struct {
	Symbol   string
	Currency string
	Exchange string
	SecType  string
	Expiry   string
}

// Instrument returns the derived instrument key for the contract: the
// ordered concatenation of the present fields, separated by "-". The key is
// a pure function of the contract fields, so the same contract always maps
// to the same key.
func (c Contract) Instrument() string {
	parts := make([]string, 0, 5)
	parts = append(parts, c.Symbol)
	for _, field := range []string{c.Currency, c.Exchange, c.SecType, c.Expiry} {
		if field != "" {
			parts = append(parts, field)
		}
	}
	return strings.Join(parts, "-")
}

// Futures creates a futures contract.
func Futures(symbol, exchange, expiry string) Contract {
	return Contract{
		Symbol:   symbol,
		Currency: "USD",
		Exchange: exchange,
		SecType:  "FUT",
		Expiry:   expiry,
	}
}

// Stock creates a stock contract.
func Stock(symbol, exchange string) Contract {
	return Contract{
		Symbol:   symbol,
		Currency: "USD",
		Exchange: exchange,
		SecType:  "STK",
	}
}
