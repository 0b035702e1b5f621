package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/Anamican/jbooktrader/pkg/marketbook"
)

func bookWith(snapshots ...marketbook.MarketSnapshot) *marketbook.MarketBook {
	book := marketbook.New("TEST", time.UTC)
	for _, s := range snapshots {
		book.Add(s)
	}
	return book
}

func quote(bid, ask, balance float64) marketbook.MarketSnapshot {
	return marketbook.MarketSnapshot{Time: time.Now(), Bid: bid, Ask: ask, Balance: balance}
}

func TestEMA_Calculation(t *testing.T) {
	ema := NewEMA(5) // alpha = 2/6

	book := marketbook.New("TEST", time.UTC)
	prices := []float64{22, 24, 26, 24, 22}
	expected := 22.0
	alpha := 2.0 / 6.0

	for i, p := range prices {
		book.Add(quote(p, p, 0))
		ema.Update(book)

		if i == 0 {
			expected = p
		} else {
			expected = expected + alpha*(p-expected)
		}
		if math.Abs(ema.Value()-expected) > 0.0001 {
			t.Errorf("Step %d: expected EMA %.4f, got %.4f", i, expected, ema.Value())
		}
	}

	if !ema.IsReady() {
		t.Error("Expected EMA to be ready after updates")
	}

	ema.Reset()
	if ema.IsReady() {
		t.Error("Expected EMA not ready after reset")
	}
	if ema.Value() != 0 {
		t.Errorf("Expected EMA value 0 after reset, got %.4f", ema.Value())
	}
}

func TestEMA_IgnoresInvalidQuotes(t *testing.T) {
	ema := NewEMA(5)
	book := bookWith(marketbook.MarketSnapshot{Time: time.Now()})
	ema.Update(book)
	if ema.IsReady() {
		t.Error("Expected EMA to ignore a one-sided/empty quote")
	}
}

func TestDepthBalance(t *testing.T) {
	ind := NewDepthBalance()
	book := marketbook.New("TEST", time.UTC)

	ind.Update(book)
	if ind.IsReady() {
		t.Error("Expected not ready with an empty book")
	}

	book.Add(quote(100, 101, 42.5))
	ind.Update(book)
	if !ind.IsReady() {
		t.Error("Expected ready after one snapshot")
	}
	if ind.Value() != 42.5 {
		t.Errorf("Expected balance 42.5, got %.2f", ind.Value())
	}
}

func TestBalanceVelocity_WarmUp(t *testing.T) {
	ind := NewBalanceVelocity(2, 5)
	book := marketbook.New("TEST", time.UTC)

	for i := 0; i < 4; i++ {
		book.Add(quote(100, 101, float64(i*10)))
		ind.Update(book)
		if ind.IsReady() {
			t.Errorf("Expected not ready after %d samples (slow period 5)", i+1)
		}
	}

	book.Add(quote(100, 101, 40))
	ind.Update(book)
	if !ind.IsReady() {
		t.Error("Expected ready after slow-period samples")
	}

	// Rising balance: fast smoothing leads the slow one
	if ind.Value() <= 0 {
		t.Errorf("Expected positive velocity for rising balance, got %.4f", ind.Value())
	}
}

func TestPriceVelocity_Direction(t *testing.T) {
	ind := NewPriceVelocity(2, 4)
	book := marketbook.New("TEST", time.UTC)

	for _, p := range []float64{100, 99, 98, 97, 96} {
		book.Add(quote(p-0.25, p+0.25, 0))
		ind.Update(book)
	}

	if !ind.IsReady() {
		t.Fatal("Expected ready")
	}
	if ind.Value() >= 0 {
		t.Errorf("Expected negative velocity for falling prices, got %.4f", ind.Value())
	}
}

func TestManager_HasValidIndicators(t *testing.T) {
	m := NewManager()
	if !m.HasValidIndicators() {
		t.Error("Expected empty manager to be valid")
	}

	ema := NewEMA(5)
	vel := NewBalanceVelocity(2, 3)
	m.Add(ema)
	m.Add(vel)

	book := marketbook.New("TEST", time.UTC)
	book.Add(quote(100, 101, 10))
	m.UpdateAll(book)

	// EMA ready after one sample, velocity not yet
	if m.HasValidIndicators() {
		t.Error("Expected manager invalid while velocity warms up")
	}

	for i := 0; i < 3; i++ {
		book.Add(quote(100, 101, 10))
		m.UpdateAll(book)
	}
	if !m.HasValidIndicators() {
		t.Error("Expected manager valid once all indicators are ready")
	}

	m.ResetAll()
	if m.HasValidIndicators() {
		t.Error("Expected manager invalid after reset")
	}
}
