package gateway

import (
	"fmt"
	"sync"

	"github.com/Anamican/jbooktrader/pkg/contract"
)

// SimGateway is an in-process gateway used for backtests, optimization runs
// and tests. It records every request and can be scripted to answer account
// requests.
type SimGateway struct {
	mu        sync.Mutex
	callbacks Callbacks
	connected bool

	// AccountCode, when non-empty, is delivered asynchronously in response
	// to RequestAccountUpdates(true, ...).
	AccountCode string

	ContractDetailRequests []int
	DepthSubscriptions     []int
	DataSubscriptions      []int
	DepthCancels           []int
	DataCancels            []int
	PlacedOrders           []int
	ExecutionRequests      []int
}

// NewSimGateway creates a simulated gateway.
func NewSimGateway() *SimGateway {
	return &SimGateway{}
}

// SetCallbacks installs the callback consumer.
func (g *SimGateway) SetCallbacks(callbacks Callbacks) {
	g.mu.Lock()
	g.callbacks = callbacks
	g.mu.Unlock()
}

// Connect marks the gateway connected.
func (g *SimGateway) Connect(host string, port, clientID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.callbacks == nil {
		return fmt.Errorf("callbacks not set")
	}
	g.connected = true
	return nil
}

// Disconnect is idempotent.
func (g *SimGateway) Disconnect() {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
}

// IsConnected reports the connection state.
func (g *SimGateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// RequestContractDetails records the request.
func (g *SimGateway) RequestContractDetails(tickerID int, c contract.Contract) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ContractDetailRequests = append(g.ContractDetailRequests, tickerID)
	return nil
}

// SubscribeMarketDepth records the subscription.
func (g *SimGateway) SubscribeMarketDepth(tickerID int, c contract.Contract, rows int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DepthSubscriptions = append(g.DepthSubscriptions, tickerID)
	return nil
}

// SubscribeMarketData records the subscription.
func (g *SimGateway) SubscribeMarketData(tickerID int, c contract.Contract) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DataSubscriptions = append(g.DataSubscriptions, tickerID)
	return nil
}

// CancelMarketDepth records the cancellation.
func (g *SimGateway) CancelMarketDepth(tickerID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DepthCancels = append(g.DepthCancels, tickerID)
	return nil
}

// CancelMarketData records the cancellation.
func (g *SimGateway) CancelMarketData(tickerID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DataCancels = append(g.DataCancels, tickerID)
	return nil
}

// PlaceOrder records the order id.
func (g *SimGateway) PlaceOrder(orderID int, c contract.Contract, order Order) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PlacedOrders = append(g.PlacedOrders, orderID)
	return nil
}

// RequestAccountUpdates answers with the scripted account code, if any.
func (g *SimGateway) RequestAccountUpdates(subscribe bool, subAccount string) error {
	g.mu.Lock()
	callbacks := g.callbacks
	code := g.AccountCode
	g.mu.Unlock()

	if subscribe && code != "" && callbacks != nil {
		go callbacks.OnAccountCode(code)
	}
	return nil
}

// RequestExecutions records the request.
func (g *SimGateway) RequestExecutions(orderID int, filter ExecutionFilter) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ExecutionRequests = append(g.ExecutionRequests, orderID)
	return nil
}
