package natsgw

import (
	"time"

	"github.com/Anamican/jbooktrader/pkg/contract"
	"github.com/Anamican/jbooktrader/pkg/marketbook"
)

// snapshotMsg is the wire form of a market snapshot on md.* subjects.
type snapshotMsg struct {
	TimestampNs int64   `json:"timestamp_ns"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	BidSize     int64   `json:"bid_size"`
	AskSize     int64   `json:"ask_size"`
	LastPrice   float64 `json:"last_price"`
	Volume      int64   `json:"volume"`
	Balance     float64 `json:"balance"`
}

func (m snapshotMsg) toSnapshot() marketbook.MarketSnapshot {
	return marketbook.MarketSnapshot{
		Time:      time.Unix(0, m.TimestampNs),
		Bid:       m.Bid,
		Ask:       m.Ask,
		BidSize:   m.BidSize,
		AskSize:   m.AskSize,
		LastPrice: m.LastPrice,
		Volume:    m.Volume,
		Balance:   m.Balance,
	}
}

// orderMsg is published to ors.order.
type orderMsg struct {
	OrderID   int               `json:"order_id"`
	ClientID  int               `json:"client_id"`
	Contract  contract.Contract `json:"contract"`
	Action    string            `json:"action"`
	Quantity  int               `json:"quantity"`
	OrderType string            `json:"order_type"`
	Account   string            `json:"account,omitempty"`
}

// execMsg arrives on ors.exec.<clientID>.
type execMsg struct {
	OrderID  int     `json:"order_id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// execRequestMsg is published to ors.executions.req.
type execRequestMsg struct {
	OrderID  int    `json:"order_id"`
	ClientID int    `json:"client_id"`
	Account  string `json:"account,omitempty"`
}

// subscriptionMsg is published to md subscription request subjects.
type subscriptionMsg struct {
	TickerID   int               `json:"ticker_id"`
	ClientID   int               `json:"client_id"`
	Contract   contract.Contract `json:"contract"`
	DepthRows  int               `json:"depth_rows,omitempty"`
	Subscribe  bool              `json:"subscribe"`
	Instrument string            `json:"instrument"`
}

// accountRequestMsg is published to account.req.
type accountRequestMsg struct {
	Subscribe  bool   `json:"subscribe"`
	SubAccount string `json:"sub_account,omitempty"`
	ClientID   int    `json:"client_id"`
}

// accountMsg arrives on account.<subAccount> (or account.default).
type accountMsg struct {
	Code string `json:"code"`
}

// nextIDMsg arrives on ors.nextid.<clientID>.
type nextIDMsg struct {
	OrderID int `json:"order_id"`
}
