package trader

import (
	"fmt"

	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/gateway"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
	"github.com/Anamican/jbooktrader/pkg/strategy"
)

// OnMarketSnapshot appends the snapshot to the instrument's book and runs
// the evaluation pipeline for every strategy on that ticker. Invoked on
// gateway goroutines; all strategy failures are contained here.
func (a *Assistant) OnMarketSnapshot(tickerID int, snapshot marketbook.MarketSnapshot) {
	a.mu.Lock()
	book := a.tickerBooks[tickerID]
	strategies := make([]strategy.Strategy, len(a.tickerStrategies[tickerID]))
	copy(strategies, a.tickerStrategies[tickerID])
	a.mu.Unlock()

	if book == nil {
		return
	}
	book.Add(snapshot)
	a.dispatcher.Fire(dispatcher.TimeUpdate, snapshot.Time)

	for _, s := range strategies {
		a.evaluate(s, book, snapshot)
	}
}

// evaluate runs one strategy against a new snapshot: clock, activity flag,
// indicators, decision, schedule enforcement, then position reconciliation.
func (a *Assistant) evaluate(s strategy.Strategy, book *marketbook.MarketBook, snapshot marketbook.MarketSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			a.report.Report(s.Name(), fmt.Sprintf("Panic in strategy evaluation: %v", r))
		}
	}()

	s.SetTime(snapshot.Time)
	inSchedule := s.TradingSchedule().Contains(snapshot.Time)
	s.SetActive(inSchedule)

	s.Indicators().UpdateAll(book)

	if inSchedule {
		if s.Indicators().HasValidIndicators() {
			s.OnBookChange()
		}
	} else {
		s.ClosePosition()
	}

	s.Position().Trade()
}

// OnExecDetails applies a fill to the owning strategy's position, marks the
// order resolved and clears the single-flight gate.
func (a *Assistant) OnExecDetails(execution gateway.Execution) {
	a.mu.Lock()
	open, ok := a.ordersByID[execution.OrderID]
	if !ok || open.Resolved {
		a.mu.Unlock()
		a.report.Report("Trader", fmt.Sprintf("Execution for unknown or resolved order %d ignored", execution.OrderID))
		return
	}
	open.Resolved = true
	a.orderExecutionPending = false
	s := open.Strategy
	a.mu.Unlock()

	s.Position().Fill(execution.Quantity, execution.Price)
	a.report.Report(s.Name(), fmt.Sprintf("Order %d filled: %d @ %.4f",
		execution.OrderID, execution.Quantity, execution.Price))
	a.dispatcher.Fire(dispatcher.StrategyUpdate, s)
}

// OnAccountCode stores the code and wakes a Connect waiting on it.
func (a *Assistant) OnAccountCode(code string) {
	a.mu.Lock()
	a.accountCode = code
	a.mu.Unlock()

	select {
	case a.accountCh <- code:
	default:
	}
}

// OnMarketDataActive feeds the connectivity monitor.
func (a *Assistant) OnMarketDataActive(active bool) {
	a.SetMarketDataActive(active)
}

// OnNextValidOrderID raises the order id counter to the broker watermark.
func (a *Assistant) OnNextValidOrderID(orderID int) {
	a.SetOrderID(orderID)
}
