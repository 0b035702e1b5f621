package trader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/dispatcher"
	"github.com/Anamican/jbooktrader/pkg/gateway"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
	"github.com/Anamican/jbooktrader/pkg/position"
	"github.com/Anamican/jbooktrader/pkg/schedule"
	"github.com/Anamican/jbooktrader/pkg/strategy"
)

type testStrategy struct {
	*strategy.BaseStrategy
	onBookChange func()
}

func (s *testStrategy) OnBookChange() {
	if s.onBookChange != nil {
		s.onBookChange()
	}
}

func quietDispatcher(mode dispatcher.Mode) *dispatcher.Dispatcher {
	report := dispatcher.NewEventReportWithOutput(func(string, ...interface{}) {})
	return dispatcher.New(mode, report)
}

func newTestStrategy(t *testing.T, symbol string) *testStrategy {
	t.Helper()
	sched, err := schedule.New("09:30:00", "16:00:00", "America/New_York")
	require.NoError(t, err)
	c := contract.Futures(symbol, "GLOBEX", "202609")
	return &testStrategy{BaseStrategy: strategy.NewBaseStrategy("Test-"+symbol, c, sched, 0.5)}
}

func newTestAssistant(mode dispatcher.Mode, cfg Config) (*Assistant, *gateway.SimGateway, *dispatcher.Dispatcher) {
	gw := gateway.NewSimGateway()
	disp := quietDispatcher(mode)
	a := New(cfg, gw, disp)
	return a, gw, disp
}

// nyTime builds an instant at the given New York wall clock time.
func nyTime(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, 3, 2, hour, minute, 0, 0, loc) // a Monday
}

func validSnapshot(ts time.Time) marketbook.MarketSnapshot {
	return marketbook.MarketSnapshot{Time: ts, Bid: 99.75, Ask: 100.25, BidSize: 5, AskSize: 5}
}

func TestCreateMarketBook_SharedPerInstrument(t *testing.T) {
	a, _, _ := newTestAssistant(dispatcher.BackTest, Config{})

	s1 := newTestStrategy(t, "ES")
	s2 := newTestStrategy(t, "ES")
	s3 := newTestStrategy(t, "NQ")

	book1, id1 := a.CreateMarketBook(s1)
	book2, id2 := a.CreateMarketBook(s2)
	book3, id3 := a.CreateMarketBook(s3)

	assert.Same(t, book1, book2)
	assert.Equal(t, id1, id2)
	assert.NotSame(t, book1, book3)
	assert.Greater(t, id3, id1)

	// Repeat resolution is stable
	_, again := a.CreateMarketBook(s1)
	assert.Equal(t, id1, again)
}

func TestRequestMarketData_IdempotentPerTicker(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.ForwardTest, Config{})

	s1 := newTestStrategy(t, "ES")
	s2 := newTestStrategy(t, "ES")

	require.NoError(t, a.RequestMarketData(s1))
	require.NoError(t, a.RequestMarketData(s1))
	require.NoError(t, a.RequestMarketData(s2))

	assert.Len(t, gw.ContractDetailRequests, 1)
	assert.Len(t, gw.DepthSubscriptions, 1)
	assert.Len(t, gw.DataSubscriptions, 1)
}

func TestCancelMarketData_Idempotent(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.ForwardTest, Config{})
	s := newTestStrategy(t, "ES")

	require.NoError(t, a.RequestMarketData(s))
	require.NoError(t, a.CancelMarketData(s))
	require.NoError(t, a.CancelMarketData(s))

	assert.Len(t, gw.DepthCancels, 1)
	assert.Len(t, gw.DataCancels, 1)

	// Resubscription after a cancel issues fresh requests
	require.NoError(t, a.RequestMarketData(s))
	assert.Len(t, gw.DepthSubscriptions, 2)
}

func TestPlaceOrder_SingleFlightGate(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{})
	require.NoError(t, gw.Connect("localhost", 0, 1))
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))
	s.SetPosition(1)

	a.PlaceMarketOrder(1, position.Buy, s)
	require.Len(t, gw.PlacedOrders, 1)
	assert.True(t, a.IsOrderExecutionPending())

	// Second submission while in flight is silently dropped: no gateway
	// call, no new order id
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Len(t, gw.PlacedOrders, 1)
	assert.Len(t, a.OpenOrders(), 1)

	a.ResetOrderExecutionPending()
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Len(t, gw.PlacedOrders, 2)
}

func TestPlaceOrder_ScheduleGuardNearClose(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{})
	require.NoError(t, gw.Connect("localhost", 0, 1))
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)

	// Mid-session a non-flat target goes through
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))
	s.SetPosition(1)
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Len(t, gw.PlacedOrders, 1)
	a.ResetOrderExecutionPending()

	// Ten minutes before close a non-flat target is refused
	s.MarketBook().Add(validSnapshot(nyTime(t, 15, 50)))
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Len(t, gw.PlacedOrders, 1)
	assert.False(t, a.IsOrderExecutionPending())

	// A flat target (closing) is always allowed
	s.ClosePosition()
	a.PlaceMarketOrder(1, position.Sell, s)
	assert.Len(t, gw.PlacedOrders, 2)
}

func TestPlaceOrder_GuardFollowsBookClock(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{})
	require.NoError(t, gw.Connect("localhost", 0, 1))

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)

	// Wall clock is mid-session but the book says ten minutes to close:
	// remaining time is measured against the book, so the order is refused
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })
	s.MarketBook().Add(validSnapshot(nyTime(t, 15, 50)))
	s.SetPosition(1)
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Empty(t, gw.PlacedOrders)
	assert.Empty(t, a.OpenOrders())
	assert.False(t, a.IsOrderExecutionPending())
}

func TestPlaceOrder_EmptyBookSkipsSubmission(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.ForwardTest, Config{})
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.SetPosition(1)

	// No quote yet: nothing is submitted and no phantom fill at price zero
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Empty(t, gw.PlacedOrders)
	assert.Empty(t, a.OpenOrders())
	assert.False(t, a.IsOrderExecutionPending())
	assert.Zero(t, s.Position().CurrentPosition())
	assert.Zero(t, s.Position().ExpectedFillPrice())

	// The first quote unblocks the next reconciliation
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 1)))
	a.PlaceMarketOrder(1, position.Buy, s)
	assert.Equal(t, 1, s.Position().CurrentPosition())
}

func TestPlaceOrder_ExpectedFillPrice(t *testing.T) {
	a, _, _ := newTestAssistant(dispatcher.BackTest, Config{})
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES") // assumed spread 0.5
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0))) // mid 100.0
	s.SetPosition(1)

	a.PlaceMarketOrder(1, position.Buy, s)
	assert.InDelta(t, 100.25, s.Position().ExpectedFillPrice(), 1e-9)

	s.SetPosition(-1)
	a.PlaceMarketOrder(2, position.Sell, s)
	assert.InDelta(t, 99.75, s.Position().ExpectedFillPrice(), 1e-9)
}

func TestPlaceOrder_SimulatedRoutingFillsAtExpected(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.ForwardTest, Config{})
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))
	s.SetPosition(2)

	a.PlaceMarketOrder(2, position.Buy, s)

	// The simulated fill never touches the gateway socket
	assert.Empty(t, gw.PlacedOrders)
	assert.Equal(t, 2, s.Position().CurrentPosition())
	assert.InDelta(t, 100.25, s.Position().AvgFillPrice(), 1e-9)
	assert.False(t, a.IsOrderExecutionPending())

	orders := a.OpenOrders()
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Resolved)
}

func TestPlaceOrder_LiveRoutingWaitsForExecution(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{})
	require.NoError(t, gw.Connect("localhost", 0, 1))
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))
	s.SetPosition(1)

	a.PlaceMarketOrder(1, position.Buy, s)
	require.Len(t, gw.PlacedOrders, 1)
	assert.True(t, a.IsOrderExecutionPending())
	assert.Zero(t, s.Position().CurrentPosition())

	a.OnExecDetails(gateway.Execution{OrderID: gw.PlacedOrders[0], Quantity: 1, Price: 100.25})
	assert.False(t, a.IsOrderExecutionPending())
	assert.Equal(t, 1, s.Position().CurrentPosition())
}

func TestOrderIDs_StrictlyIncreasing(t *testing.T) {
	a, _, _ := newTestAssistant(dispatcher.BackTest, Config{})
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))

	s.SetPosition(1)
	a.PlaceMarketOrder(1, position.Buy, s)
	a.PlaceMarketOrder(1, position.Buy, s)

	// Broker watermark jumps the counter forward, never backwards
	a.SetOrderID(100)
	a.PlaceMarketOrder(1, position.Buy, s)
	a.SetOrderID(5)
	a.PlaceMarketOrder(1, position.Buy, s)

	orders := a.OpenOrders()
	require.Len(t, orders, 4)
	last := 0
	for _, o := range orders {
		assert.Greater(t, o.OrderID, last)
		last = o.OrderID
	}
	assert.Equal(t, 101, orders[2].OrderID)
}

func TestOnExecDetails_UnknownOrderIgnored(t *testing.T) {
	a, _, _ := newTestAssistant(dispatcher.Trade, Config{})
	assert.NotPanics(t, func() {
		a.OnExecDetails(gateway.Execution{OrderID: 42, Quantity: 1, Price: 10})
	})
}

func TestConnectivity_ShortOutageDoesNotForceClose(t *testing.T) {
	a, _, disp := newTestAssistant(dispatcher.Trade, Config{MaxDisconnection: time.Minute})

	base := nyTime(t, 10, 0)
	now := base
	a.SetClock(func() time.Time { return now })

	a.SetMarketDataActive(false)
	assert.False(t, a.IsMarketDataActive())

	now = base.Add(30 * time.Second)
	a.SetMarketDataActive(true)
	assert.True(t, a.IsMarketDataActive())
	assert.Equal(t, dispatcher.Trade, disp.Mode())
}

func TestConnectivity_LongOutageForcesClose(t *testing.T) {
	a, gw, disp := newTestAssistant(dispatcher.Trade, Config{MaxDisconnection: time.Minute})
	require.NoError(t, gw.Connect("localhost", 0, 1))

	base := nyTime(t, 10, 0)
	now := base
	a.SetClock(func() time.Time { return now })

	a.SetMarketDataActive(false)
	// Repeated deactivations keep the first outage timestamp
	now = base.Add(30 * time.Second)
	a.SetMarketDataActive(false)

	now = base.Add(2 * time.Minute)
	a.SetMarketDataActive(true)
	assert.Equal(t, dispatcher.ForceClose, disp.Mode())

	// Mode is latched until an explicit restart
	err := disp.SetMode(dispatcher.Trade)
	assert.Error(t, err)
	assert.Equal(t, dispatcher.ForceClose, disp.Mode())
}

func TestConnect_PaperAccountAccepted(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{AccountTimeout: time.Second})
	gw.AccountCode = "DU12345"

	require.NoError(t, a.Connect())
	assert.Equal(t, "DU12345", a.AccountCode())
}

func TestConnect_LiveAccountRequiresConfirmation(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{AccountTimeout: time.Second})
	gw.AccountCode = "U99999"

	err := a.Connect()
	require.Error(t, err)
	assert.False(t, gw.IsConnected())
}

func TestConnect_LiveAccountConfirmed(t *testing.T) {
	confirmed := ""
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{
		AccountTimeout: time.Second,
		ConfirmLiveAccount: func(code string) bool {
			confirmed = code
			return true
		},
	})
	gw.AccountCode = "U99999"

	require.NoError(t, a.Connect())
	assert.Equal(t, "U99999", confirmed)
}

func TestConnect_AccountTimeout(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{AccountTimeout: 50 * time.Millisecond})
	// No scripted account code: the wait must time out

	err := a.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account code")
	assert.False(t, gw.IsConnected())
}

func TestOnMarketSnapshot_DrivesStrategyPipeline(t *testing.T) {
	a, _, _ := newTestAssistant(dispatcher.ForwardTest, Config{})

	s := newTestStrategy(t, "ES")
	decisions := 0
	s.onBookChange = func() { decisions++ }
	a.AddStrategy(s)

	tickerID, ok := a.TickerID(s.Contract().Instrument())
	require.True(t, ok)

	inSession := validSnapshot(nyTime(t, 10, 0))
	a.OnMarketSnapshot(tickerID, inSession)

	assert.Equal(t, 1, s.MarketBook().Size())
	assert.Equal(t, inSession.Time, s.Time())
	assert.True(t, s.IsActive())
	assert.Equal(t, 1, decisions)

	// Outside the session the strategy is deactivated and flattened
	afterClose := validSnapshot(nyTime(t, 17, 0))
	a.OnMarketSnapshot(tickerID, afterClose)
	assert.False(t, s.IsActive())
	assert.Zero(t, s.Position().TargetPosition())
	assert.Equal(t, 1, decisions)
}

func TestOnMarketSnapshot_StrategyPanicContained(t *testing.T) {
	a, _, _ := newTestAssistant(dispatcher.ForwardTest, Config{})

	s := newTestStrategy(t, "ES")
	s.onBookChange = func() { panic("boom") }
	a.AddStrategy(s)

	tickerID, _ := a.TickerID(s.Contract().Instrument())
	assert.NotPanics(t, func() {
		a.OnMarketSnapshot(tickerID, validSnapshot(nyTime(t, 10, 0)))
	})
}

func TestRequestExecutions_ReplaysUnresolvedOrders(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.Trade, Config{})
	require.NoError(t, gw.Connect("localhost", 0, 1))
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))
	s.SetPosition(1)

	a.PlaceMarketOrder(1, position.Buy, s)
	require.True(t, a.IsOrderExecutionPending())

	// A second order left in flight after an operator gate reset
	a.ResetOrderExecutionPending()
	a.PlaceMarketOrder(1, position.Buy, s)

	a.RequestExecutions()
	assert.False(t, a.IsOrderExecutionPending())
	orders := a.OpenOrders()
	require.Len(t, orders, 2)
	require.Len(t, gw.ExecutionRequests, 2)
	assert.Equal(t, orders[0].OrderID, gw.ExecutionRequests[0])
	assert.Equal(t, orders[1].OrderID, gw.ExecutionRequests[1])

	// Resolved orders are not replayed
	a.OnExecDetails(gateway.Execution{OrderID: orders[0].OrderID, Quantity: 1, Price: 100})
	a.OnExecDetails(gateway.Execution{OrderID: orders[1].OrderID, Quantity: 1, Price: 100})
	a.RequestExecutions()
	assert.Len(t, gw.ExecutionRequests, 2)
}

func TestRemoveAllStrategies_FullReset(t *testing.T) {
	a, gw, _ := newTestAssistant(dispatcher.ForwardTest, Config{})
	a.SetClock(func() time.Time { return nyTime(t, 10, 0) })

	s := newTestStrategy(t, "ES")
	a.AddStrategy(s)
	s.MarketBook().Add(validSnapshot(nyTime(t, 10, 0)))
	s.SetPosition(1)
	a.PlaceMarketOrder(1, position.Buy, s)

	a.RemoveAllStrategies()

	assert.Empty(t, a.Strategies())
	assert.Empty(t, a.OpenOrders())
	assert.False(t, a.IsOrderExecutionPending())
	assert.Len(t, gw.DepthCancels, 1)
	assert.Len(t, gw.DataCancels, 1)

	// Registry restarts cleanly
	s2 := newTestStrategy(t, "ES")
	a.AddStrategy(s2)
	_, ok := a.TickerID(s2.Contract().Instrument())
	assert.True(t, ok)
}
