// Package gateway defines the exchange gateway the trading core talks to.
// The wire protocol behind an implementation is opaque to the core: the core
// only issues requests and consumes the asynchronous callbacks.
package gateway

import (
	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
)

// Order is a broker order request.
type Order struct {
	Action    string // "BUY" or "SELL"
	Quantity  int
	OrderType string // "MKT", "LMT", ...
	Account   string // sub-account, may be empty
}

// MarketOrder creates a market order.
func MarketOrder(action string, quantity int, account string) Order {
	return Order{
		Action:    action,
		Quantity:  quantity,
		OrderType: "MKT",
		Account:   account,
	}
}

// Execution is a fill report delivered by the gateway (or synthesized by the
// simulation path).
type Execution struct {
	OrderID  int
	Quantity int
	Price    float64
}

// ExecutionFilter narrows an execution-history request. An empty filter
// matches everything for the given order.
type ExecutionFilter struct {
	Account string
}

// Callbacks is the asynchronous surface the gateway delivers into. All
// methods are invoked on gateway goroutines; implementations must not block
// and must not panic outward.
type Callbacks interface {
	// OnMarketSnapshot delivers a new snapshot for a subscribed ticker id
	OnMarketSnapshot(tickerID int, snapshot marketbook.MarketSnapshot)

	// OnExecDetails delivers an execution report
	OnExecDetails(execution Execution)

	// OnAccountCode delivers the account code after an account-updates request
	OnAccountCode(code string)

	// OnMarketDataActive signals market-data feed transitions
	OnMarketDataActive(active bool)

	// OnNextValidOrderID delivers the broker-side order id watermark
	OnNextValidOrderID(orderID int)
}

// Gateway is the broker connection used by the trading core.
type Gateway interface {
	// SetCallbacks installs the callback consumer. Must be called before
	// Connect.
	SetCallbacks(callbacks Callbacks)

	Connect(host string, port, clientID int) error
	// Disconnect is idempotent and safe to call from any state.
	Disconnect()
	IsConnected() bool

	RequestContractDetails(tickerID int, c contract.Contract) error
	SubscribeMarketDepth(tickerID int, c contract.Contract, rows int) error
	SubscribeMarketData(tickerID int, c contract.Contract) error
	CancelMarketDepth(tickerID int) error
	CancelMarketData(tickerID int) error

	PlaceOrder(orderID int, c contract.Contract, order Order) error
	RequestAccountUpdates(subscribe bool, subAccount string) error
	RequestExecutions(orderID int, filter ExecutionFilter) error
}
