// Package natsgw implements the exchange gateway over NATS. Market data,
// executions and account updates arrive as JSON messages on per-instrument
// and per-client subjects; requests are published fire-and-forget.
package natsgw

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/gateway"
)

const (
	subjectOrder         = "ors.order"
	subjectExecRequest   = "ors.executions.req"
	subjectSubscribeMD   = "md.subscribe"
	subjectContractReq   = "md.contract.req"
	subjectAccountReq    = "account.req"
	defaultReconnectWait = 2 * time.Second
)

// Gateway is a NATS-backed implementation of gateway.Gateway.
type Gateway struct {
	mu        sync.Mutex
	callbacks gateway.Callbacks
	conn      *nats.Conn
	clientID  int

	depthSubs  map[int]*nats.Subscription
	dataSubs   map[int]*nats.Subscription
	accountSub *nats.Subscription
	execSub    *nats.Subscription
	nextIDSub  *nats.Subscription
}

// New creates a disconnected NATS gateway.
func New() *Gateway {
	return &Gateway{
		depthSubs: make(map[int]*nats.Subscription),
		dataSubs:  make(map[int]*nats.Subscription),
	}
}

// SetCallbacks installs the callback consumer. Must be called before Connect.
func (g *Gateway) SetCallbacks(callbacks gateway.Callbacks) {
	g.mu.Lock()
	g.callbacks = callbacks
	g.mu.Unlock()
}

// Connect dials the NATS server and subscribes to the per-client execution
// and order-id feeds.
func (g *Gateway) Connect(host string, port, clientID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.callbacks == nil {
		return fmt.Errorf("callbacks not set")
	}
	if g.conn != nil && g.conn.IsConnected() {
		return nil
	}

	url := fmt.Sprintf("nats://%s:%d", host, port)
	conn, err := nats.Connect(url,
		nats.Name(fmt.Sprintf("jbooktrader-%d", clientID)),
		nats.ReconnectWait(defaultReconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[NATSGateway] Disconnected: %v", err)
			} else {
				log.Printf("[NATSGateway] Disconnected")
			}
			g.fire(func(cb gateway.Callbacks) { cb.OnMarketDataActive(false) })
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATSGateway] Reconnected to %s", nc.ConnectedUrl())
			g.fire(func(cb gateway.Callbacks) { cb.OnMarketDataActive(true) })
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	g.conn = conn
	g.clientID = clientID

	execSub, err := conn.Subscribe(fmt.Sprintf("ors.exec.%d", clientID), g.handleExecution)
	if err != nil {
		conn.Close()
		g.conn = nil
		return fmt.Errorf("failed to subscribe to executions: %w", err)
	}
	g.execSub = execSub

	nextIDSub, err := conn.Subscribe(fmt.Sprintf("ors.nextid.%d", clientID), g.handleNextID)
	if err != nil {
		conn.Close()
		g.conn = nil
		return fmt.Errorf("failed to subscribe to order ids: %w", err)
	}
	g.nextIDSub = nextIDSub

	log.Printf("[NATSGateway] Connected to %s as client %d", url, clientID)
	cb := g.callbacks
	go func() { cb.OnMarketDataActive(true) }()
	return nil
}

// Disconnect drains subscriptions and closes the connection. Idempotent.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return
	}

	for id, sub := range g.depthSubs {
		sub.Unsubscribe()
		delete(g.depthSubs, id)
	}
	for id, sub := range g.dataSubs {
		sub.Unsubscribe()
		delete(g.dataSubs, id)
	}
	if g.accountSub != nil {
		g.accountSub.Unsubscribe()
		g.accountSub = nil
	}
	if g.execSub != nil {
		g.execSub.Unsubscribe()
		g.execSub = nil
	}
	if g.nextIDSub != nil {
		g.nextIDSub.Unsubscribe()
		g.nextIDSub = nil
	}

	g.conn.Close()
	g.conn = nil
	log.Printf("[NATSGateway] Connection closed")
}

// IsConnected reports whether the NATS connection is up.
func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil && g.conn.IsConnected()
}

// RequestContractDetails publishes a contract lookup request.
func (g *Gateway) RequestContractDetails(tickerID int, c contract.Contract) error {
	return g.publishSubscription(subjectContractReq, subscriptionMsg{
		TickerID:   tickerID,
		ClientID:   g.clientID,
		Contract:   c,
		Subscribe:  true,
		Instrument: c.Instrument(),
	})
}

// SubscribeMarketDepth subscribes to the order book feed for the contract.
func (g *Gateway) SubscribeMarketDepth(tickerID int, c contract.Contract, rows int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	if _, ok := g.depthSubs[tickerID]; ok {
		return nil
	}

	subject := fmt.Sprintf("md.depth.%s", c.Instrument())
	sub, err := g.conn.Subscribe(subject, g.snapshotHandler(tickerID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	g.depthSubs[tickerID] = sub

	return g.publishLocked(subjectSubscribeMD, subscriptionMsg{
		TickerID:   tickerID,
		ClientID:   g.clientID,
		Contract:   c,
		DepthRows:  rows,
		Subscribe:  true,
		Instrument: c.Instrument(),
	})
}

// SubscribeMarketData subscribes to the top-of-book tick feed for the
// contract.
func (g *Gateway) SubscribeMarketData(tickerID int, c contract.Contract) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	if _, ok := g.dataSubs[tickerID]; ok {
		return nil
	}

	subject := fmt.Sprintf("md.tick.%s", c.Instrument())
	sub, err := g.conn.Subscribe(subject, g.snapshotHandler(tickerID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	g.dataSubs[tickerID] = sub

	return g.publishLocked(subjectSubscribeMD, subscriptionMsg{
		TickerID:   tickerID,
		ClientID:   g.clientID,
		Contract:   c,
		Subscribe:  true,
		Instrument: c.Instrument(),
	})
}

// CancelMarketDepth tears down the book subscription for the ticker id.
func (g *Gateway) CancelMarketDepth(tickerID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sub, ok := g.depthSubs[tickerID]
	if !ok {
		return nil
	}
	delete(g.depthSubs, tickerID)
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to cancel depth %d: %w", tickerID, err)
	}
	return nil
}

// CancelMarketData tears down the tick subscription for the ticker id.
func (g *Gateway) CancelMarketData(tickerID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sub, ok := g.dataSubs[tickerID]
	if !ok {
		return nil
	}
	delete(g.dataSubs, tickerID)
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to cancel data %d: %w", tickerID, err)
	}
	return nil
}

// PlaceOrder publishes the order to the order routing subject.
func (g *Gateway) PlaceOrder(orderID int, c contract.Contract, order gateway.Order) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	return g.publishLocked(subjectOrder, orderMsg{
		OrderID:   orderID,
		ClientID:  g.clientID,
		Contract:  c,
		Action:    order.Action,
		Quantity:  order.Quantity,
		OrderType: order.OrderType,
		Account:   order.Account,
	})
}

// RequestAccountUpdates subscribes to the account feed and asks the broker
// bridge to start (or stop) publishing on it.
func (g *Gateway) RequestAccountUpdates(subscribe bool, subAccount string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return fmt.Errorf("not connected")
	}

	if subscribe && g.accountSub == nil {
		subject := "account.default"
		if subAccount != "" {
			subject = fmt.Sprintf("account.%s", subAccount)
		}
		sub, err := g.conn.Subscribe(subject, g.handleAccount)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		g.accountSub = sub
	}
	if !subscribe && g.accountSub != nil {
		g.accountSub.Unsubscribe()
		g.accountSub = nil
	}

	return g.publishLocked(subjectAccountReq, accountRequestMsg{
		Subscribe:  subscribe,
		SubAccount: subAccount,
		ClientID:   g.clientID,
	})
}

// RequestExecutions asks the broker bridge to replay executions for the
// given order. Results arrive on the per-client execution subject.
func (g *Gateway) RequestExecutions(orderID int, filter gateway.ExecutionFilter) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	return g.publishLocked(subjectExecRequest, execRequestMsg{
		OrderID:  orderID,
		ClientID: g.clientID,
		Account:  filter.Account,
	})
}

func (g *Gateway) snapshotHandler(tickerID int) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var m snapshotMsg
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Printf("[NATSGateway] Bad snapshot on %s: %v", msg.Subject, err)
			return
		}
		g.fire(func(cb gateway.Callbacks) { cb.OnMarketSnapshot(tickerID, m.toSnapshot()) })
	}
}

func (g *Gateway) handleExecution(msg *nats.Msg) {
	var m execMsg
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[NATSGateway] Bad execution message: %v", err)
		return
	}
	g.fire(func(cb gateway.Callbacks) {
		cb.OnExecDetails(gateway.Execution{OrderID: m.OrderID, Quantity: m.Quantity, Price: m.Price})
	})
}

func (g *Gateway) handleNextID(msg *nats.Msg) {
	var m nextIDMsg
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[NATSGateway] Bad order id message: %v", err)
		return
	}
	g.fire(func(cb gateway.Callbacks) { cb.OnNextValidOrderID(m.OrderID) })
}

func (g *Gateway) handleAccount(msg *nats.Msg) {
	var m accountMsg
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.Printf("[NATSGateway] Bad account message: %v", err)
		return
	}
	g.fire(func(cb gateway.Callbacks) { cb.OnAccountCode(m.Code) })
}

func (g *Gateway) publishSubscription(subject string, m subscriptionMsg) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	return g.publishLocked(subject, m)
}

// publishLocked marshals and publishes. Caller holds g.mu.
func (g *Gateway) publishLocked(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", subject, err)
	}
	if err := g.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (g *Gateway) fire(f func(gateway.Callbacks)) {
	g.mu.Lock()
	cb := g.callbacks
	g.mu.Unlock()
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[NATSGateway] Callback panic recovered: %v", r)
		}
	}()
	f(cb)
}
