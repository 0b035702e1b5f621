// Package trader implements the trading coordinator: it registers
// strategies, maps contracts to instruments and ticker ids, books market
// data subscriptions, routes orders, tracks fills, and watches feed
// connectivity.
package trader

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/gateway"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
	"github.com/Anamican/jbooktrader/pkg/position"
	"github.com/Anamican/jbooktrader/pkg/strategy"
)

const (
	// Orders for a non-flat target are refused this close to session end.
	minScheduleRemaining = 15 * time.Minute

	defaultDepthRows      = 10
	defaultAccountTimeout = 30 * time.Second
)

// Config configures the trader assistant.
type Config struct {
	Host       string
	Port       int
	ClientID   int
	SubAccount string

	// MaxDisconnection is the feed outage duration beyond which the
	// assistant forces the system into ForceClose on reconnect.
	MaxDisconnection time.Duration

	// AccountTimeout bounds the wait for the account code during Connect.
	// Zero means the default of 30 seconds.
	AccountTimeout time.Duration

	// DepthRows is the book depth requested per subscription. Zero means 10.
	DepthRows int

	// ConfirmLiveAccount is consulted when the account code does not look
	// like a paper account. Returning false aborts the connection. Nil
	// declines.
	ConfirmLiveAccount func(code string) bool
}

// OpenOrder is the audit record of one submitted order. Records are
// append-only; Resolved marks orders whose execution has been accounted for.
type OpenOrder struct {
	OrderID     int
	Contract    contract.Contract
	Order       gateway.Order
	Strategy    strategy.Strategy
	SubmittedAt time.Time
	Resolved    bool
}

// Assistant is the trading coordinator. One coarse mutex guards all of its
// state; gateway callbacks and strategy calls funnel through it.
type Assistant struct {
	cfg        Config
	gw         gateway.Gateway
	dispatcher *dispatcher.Dispatcher
	report     *dispatcher.EventReport
	now        func() time.Time

	mu               sync.Mutex
	strategies       map[int]strategy.Strategy
	tickers          map[string]int // instrument -> ticker id
	marketBooks      map[string]*marketbook.MarketBook
	tickerBooks      map[int]*marketbook.MarketBook
	tickerContracts  map[int]contract.Contract
	tickerStrategies map[int][]strategy.Strategy
	subscribed       map[int]bool

	openOrders []*OpenOrder
	ordersByID map[int]*OpenOrder

	nextStrategyID int
	nextTickerID   int
	nextOrderID    int

	// orderExecutionPending is the process-wide single-flight gate: while an
	// order is in flight no strategy may submit another.
	orderExecutionPending bool

	marketDataActive bool
	disconnectedAt   time.Time

	accountCode string
	accountCh   chan string
}

// New creates an assistant and installs it as the gateway's callback
// consumer.
func New(cfg Config, gw gateway.Gateway, disp *dispatcher.Dispatcher) *Assistant {
	if cfg.AccountTimeout <= 0 {
		cfg.AccountTimeout = defaultAccountTimeout
	}
	if cfg.DepthRows <= 0 {
		cfg.DepthRows = defaultDepthRows
	}

	a := &Assistant{
		cfg:              cfg,
		gw:               gw,
		dispatcher:       disp,
		report:           disp.EventReport(),
		now:              time.Now,
		strategies:       make(map[int]strategy.Strategy),
		tickers:          make(map[string]int),
		marketBooks:      make(map[string]*marketbook.MarketBook),
		tickerBooks:      make(map[int]*marketbook.MarketBook),
		tickerContracts:  make(map[int]contract.Contract),
		tickerStrategies: make(map[int][]strategy.Strategy),
		subscribed:       make(map[int]bool),
		ordersByID:       make(map[int]*OpenOrder),
		marketDataActive: true,
		accountCh:        make(chan string, 1),
	}
	gw.SetCallbacks(a)
	return a
}

// SetClock overrides the time source, used in tests.
func (a *Assistant) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// Connect connects the gateway and confirms the account. The account code
// must arrive within the configured timeout; a code that does not look like
// a paper account (prefix "D") requires explicit confirmation.
func (a *Assistant) Connect() error {
	if err := a.gw.Connect(a.cfg.Host, a.cfg.Port, a.cfg.ClientID); err != nil {
		return fmt.Errorf("gateway connect failed: %w", err)
	}

	if err := a.gw.RequestAccountUpdates(true, a.cfg.SubAccount); err != nil {
		a.gw.Disconnect()
		return fmt.Errorf("account updates request failed: %w", err)
	}

	select {
	case code := <-a.accountCh:
		a.mu.Lock()
		a.accountCode = code
		a.mu.Unlock()

		if !strings.HasPrefix(code, "D") {
			if a.cfg.ConfirmLiveAccount == nil || !a.cfg.ConfirmLiveAccount(code) {
				a.gw.Disconnect()
				return fmt.Errorf("live account %s not confirmed", code)
			}
		}
		a.report.Report("Trader", "Connected, account "+code)

	case <-time.After(a.cfg.AccountTimeout):
		a.gw.Disconnect()
		return fmt.Errorf("no account code received within %s", a.cfg.AccountTimeout)
	}

	return nil
}

// Disconnect disconnects the gateway.
func (a *Assistant) Disconnect() {
	a.gw.Disconnect()
}

// AccountCode returns the account code received during Connect.
func (a *Assistant) AccountCode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accountCode
}

// CreateMarketBook resolves the strategy's contract to an instrument,
// allocating a ticker id and a shared market book on first sight. Strategies
// trading the same instrument share one book and one ticker id.
func (a *Assistant) CreateMarketBook(s strategy.Strategy) (*marketbook.MarketBook, int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	instrument := s.Contract().Instrument()
	id, ok := a.tickers[instrument]
	if !ok {
		a.nextTickerID++
		id = a.nextTickerID
		a.tickers[instrument] = id
		book := marketbook.New(instrument, s.TradingSchedule().Location())
		a.marketBooks[instrument] = book
		a.tickerBooks[id] = book
		a.tickerContracts[id] = s.Contract()
	}

	for _, registered := range a.tickerStrategies[id] {
		if registered == s {
			return a.marketBooks[instrument], id
		}
	}
	a.tickerStrategies[id] = append(a.tickerStrategies[id], s)
	return a.marketBooks[instrument], id
}

// TickerID returns the ticker id for an instrument, if allocated.
func (a *Assistant) TickerID(instrument string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.tickers[instrument]
	return id, ok
}

// RequestMarketData subscribes the strategy's instrument: one contract
// details request, one depth subscription and one tick subscription per
// ticker id. Repeat calls for an already subscribed ticker are no-ops.
func (a *Assistant) RequestMarketData(s strategy.Strategy) error {
	_, tickerID := a.CreateMarketBook(s)

	a.mu.Lock()
	if a.subscribed[tickerID] {
		a.mu.Unlock()
		return nil
	}
	a.subscribed[tickerID] = true
	c := a.tickerContracts[tickerID]
	rows := a.cfg.DepthRows
	a.mu.Unlock()

	if err := a.gw.RequestContractDetails(tickerID, c); err != nil {
		return fmt.Errorf("contract details request failed for %s: %w", c.Instrument(), err)
	}
	if err := a.gw.SubscribeMarketDepth(tickerID, c, rows); err != nil {
		return fmt.Errorf("depth subscription failed for %s: %w", c.Instrument(), err)
	}
	if err := a.gw.SubscribeMarketData(tickerID, c); err != nil {
		return fmt.Errorf("market data subscription failed for %s: %w", c.Instrument(), err)
	}

	a.report.Report("Trader", "Subscribed "+c.Instrument())
	return nil
}

// CancelMarketData cancels the strategy's instrument subscription. Repeat
// calls are no-ops.
func (a *Assistant) CancelMarketData(s strategy.Strategy) error {
	instrument := s.Contract().Instrument()

	a.mu.Lock()
	tickerID, ok := a.tickers[instrument]
	if !ok || !a.subscribed[tickerID] {
		a.mu.Unlock()
		return nil
	}
	delete(a.subscribed, tickerID)
	a.mu.Unlock()

	if err := a.gw.CancelMarketDepth(tickerID); err != nil {
		return fmt.Errorf("depth cancel failed for %s: %w", instrument, err)
	}
	if err := a.gw.CancelMarketData(tickerID); err != nil {
		return fmt.Errorf("market data cancel failed for %s: %w", instrument, err)
	}
	return nil
}

// AddStrategy registers a strategy: assigns its id, binds the shared market
// book and the order executor, and in live modes reports the schedule and
// subscribes market data.
func (a *Assistant) AddStrategy(s strategy.Strategy) {
	a.mu.Lock()
	a.nextStrategyID++
	id := a.nextStrategyID
	a.mu.Unlock()

	s.SetID(id)
	book, _ := a.CreateMarketBook(s)
	s.SetMarketBook(book)
	s.Position().SetExecutor(&strategyExecutor{assistant: a, strat: s})

	a.mu.Lock()
	a.strategies[id] = s
	a.mu.Unlock()

	mode := a.dispatcher.Mode()
	if mode == dispatcher.ForwardTest || mode == dispatcher.Trade {
		a.report.Report(s.Name(), "Trading schedule: "+s.TradingSchedule().String())
		if err := a.RequestMarketData(s); err != nil {
			a.report.ReportError(err)
		}
	}

	a.dispatcher.Fire(dispatcher.StrategyUpdate, s)
}

// Strategies returns the registered strategies.
func (a *Assistant) Strategies() []strategy.Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]strategy.Strategy, 0, len(a.strategies))
	for _, s := range a.strategies {
		out = append(out, s)
	}
	return out
}

// RemoveAllStrategies cancels all subscriptions and resets the assistant to
// its initial state.
func (a *Assistant) RemoveAllStrategies() {
	a.mu.Lock()
	subscribed := make([]int, 0, len(a.subscribed))
	for id := range a.subscribed {
		subscribed = append(subscribed, id)
	}
	a.mu.Unlock()

	for _, tickerID := range subscribed {
		if err := a.gw.CancelMarketDepth(tickerID); err != nil {
			a.report.ReportError(err)
		}
		if err := a.gw.CancelMarketData(tickerID); err != nil {
			a.report.ReportError(err)
		}
	}

	a.mu.Lock()
	a.strategies = make(map[int]strategy.Strategy)
	a.tickers = make(map[string]int)
	a.marketBooks = make(map[string]*marketbook.MarketBook)
	a.tickerBooks = make(map[int]*marketbook.MarketBook)
	a.tickerContracts = make(map[int]contract.Contract)
	a.tickerStrategies = make(map[int][]strategy.Strategy)
	a.subscribed = make(map[int]bool)
	a.openOrders = nil
	a.ordersByID = make(map[int]*OpenOrder)
	a.orderExecutionPending = false
	a.mu.Unlock()

	a.report.Report("Trader", "All strategies removed")
}

// OpenOrders returns a copy of the order audit trail.
func (a *Assistant) OpenOrders() []OpenOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]OpenOrder, len(a.openOrders))
	for i, o := range a.openOrders {
		out[i] = *o
	}
	return out
}

// IsOrderExecutionPending reports the single-flight gate.
func (a *Assistant) IsOrderExecutionPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orderExecutionPending
}

// ResetOrderExecutionPending clears the single-flight gate.
func (a *Assistant) ResetOrderExecutionPending() {
	a.mu.Lock()
	a.orderExecutionPending = false
	a.mu.Unlock()
}

// SetOrderID raises the order id counter to at least orderID. Ids never
// move backwards.
func (a *Assistant) SetOrderID(orderID int) {
	a.mu.Lock()
	if orderID > a.nextOrderID {
		a.nextOrderID = orderID
	}
	a.mu.Unlock()
}

// PlaceMarketOrder submits a market order for the strategy through the
// order coordinator.
func (a *Assistant) PlaceMarketOrder(quantity int, side position.Side, s strategy.Strategy) {
	order := gateway.MarketOrder(string(side), quantity, a.cfg.SubAccount)
	a.placeOrder(s.Contract(), order, s)
}

// placeOrder runs the order preconditions and routes the order either to the
// live gateway or to the simulated fill path. Failures are reported, never
// propagated.
func (a *Assistant) placeOrder(c contract.Contract, order gateway.Order, s strategy.Strategy) {
	defer func() {
		if r := recover(); r != nil {
			a.report.Report("Trader", fmt.Sprintf("Panic in placeOrder: %v", r))
		}
	}()

	a.mu.Lock()

	if a.orderExecutionPending {
		a.mu.Unlock()
		return
	}

	// Without a quote there is no fill price to expect: skip the
	// submission entirely, leaving the gate clear
	snapshot, ok := s.MarketBook().Snapshot()
	if !ok {
		a.mu.Unlock()
		a.report.Report(s.Name(), "Order skipped: no market data for "+c.Instrument())
		return
	}

	// Remaining session time is measured against the book's clock, which
	// is the snapshot time in replay and effectively wall time when live
	if s.Position().TargetPosition() != 0 {
		if s.TradingSchedule().RemainingTime(snapshot.Time) < minScheduleRemaining {
			a.mu.Unlock()
			return
		}
	}

	a.orderExecutionPending = true
	a.nextOrderID++
	orderID := a.nextOrderID

	open := &OpenOrder{
		OrderID:     orderID,
		Contract:    c,
		Order:       order,
		Strategy:    s,
		SubmittedAt: a.now(),
	}
	a.openOrders = append(a.openOrders, open)
	a.ordersByID[orderID] = open

	mode := a.dispatcher.Mode()
	live := mode.IsLive() && a.gw.IsConnected()
	a.mu.Unlock()

	// Expected fill straddles the mid by half the strategy's assumed spread
	half := s.BidAskSpread() / 2.0
	expected := snapshot.MidPrice() + half
	if order.Action == string(position.Sell) {
		expected = snapshot.MidPrice() - half
	}
	s.Position().SetExpectedFillPrice(expected)

	a.report.Report(s.Name(), fmt.Sprintf("Order %d: %s %d %s",
		orderID, order.Action, order.Quantity, c.Instrument()))

	if live {
		if err := a.gw.PlaceOrder(orderID, c, order); err != nil {
			a.report.ReportError(fmt.Errorf("order %d submission failed: %w", orderID, err))
			a.ResetOrderExecutionPending()
		}
		return
	}

	// Simulated routing fills at the expected price through the same
	// execution-report path live fills take
	quantity := order.Quantity
	if order.Action == string(position.Sell) {
		quantity = -quantity
	}
	a.OnExecDetails(gateway.Execution{OrderID: orderID, Quantity: quantity, Price: expected})
}

// RequestExecutions re-requests execution history for every unresolved open
// order, clearing the single-flight gate first. Used after reconnects to
// reconcile fills that may have happened during the outage.
func (a *Assistant) RequestExecutions() {
	a.mu.Lock()
	// Fill tracking per order is the binary Resolved marker: an
	// unresolved order carries no partial-fill state to clear, so the
	// per-order reset collapses into clearing the shared gate before
	// history is re-requested.
	a.orderExecutionPending = false
	pending := make([]*OpenOrder, 0)
	for _, o := range a.openOrders {
		if !o.Resolved {
			pending = append(pending, o)
		}
	}
	subAccount := a.cfg.SubAccount
	a.mu.Unlock()

	for _, o := range pending {
		a.report.Report("Trader", fmt.Sprintf("Requesting executions for order %d", o.OrderID))
		if err := a.gw.RequestExecutions(o.OrderID, gateway.ExecutionFilter{Account: subAccount}); err != nil {
			a.report.ReportError(fmt.Errorf("execution request for order %d failed: %w", o.OrderID, err))
		}
	}
}

// IsMarketDataActive reports the feed state.
func (a *Assistant) IsMarketDataActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.marketDataActive
}

// SetMarketDataActive is the connectivity monitor. A deactivation records
// the outage start; a reactivation after an outage longer than the
// configured maximum forces the system into ForceClose.
func (a *Assistant) SetMarketDataActive(active bool) {
	a.mu.Lock()
	now := a.now()

	if !active {
		a.marketDataActive = false
		if a.disconnectedAt.IsZero() {
			a.disconnectedAt = now
		}
		a.mu.Unlock()
		a.report.Report("Trader", "Market data feed inactive")
		return
	}

	a.marketDataActive = true
	outage := time.Duration(0)
	if !a.disconnectedAt.IsZero() {
		outage = now.Sub(a.disconnectedAt)
	}
	a.disconnectedAt = time.Time{}
	maxOutage := a.cfg.MaxDisconnection
	a.mu.Unlock()

	if outage > 0 {
		a.report.Report("Trader", fmt.Sprintf("Market data feed restored after %s", outage))
	}
	if maxOutage > 0 && outage > maxOutage {
		a.report.Report("Trader", fmt.Sprintf("Outage %s exceeded maximum %s, forcing close", outage, maxOutage))
		a.dispatcher.ForceCloseMode()
		a.RequestExecutions()
	}
}

// strategyExecutor binds one strategy's position manager to the assistant's
// order coordinator.
type strategyExecutor struct {
	assistant *Assistant
	strat     strategy.Strategy
}

func (e *strategyExecutor) PlaceMarketOrder(quantity int, side position.Side) {
	e.assistant.PlaceMarketOrder(quantity, side, e.strat)
}
