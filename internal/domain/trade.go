package domain

import "time"

// Trade records one settled execution between a buy and a sell order.
type Trade struct {
	TradeID     string
	Ticker      string
	BuyOrderID  string
	SellOrderID string
	Price       int64 // cents
	Quantity    int64
	ExecutedAt  time.Time
}

// Quote is one market-data tick for an instrument. LastPrice drives
// portfolio valuation and stop-order triggering.
type Quote struct {
	Ticker    string
	LastPrice int64 // cents
	BidPrice  int64
	AskPrice  int64
	Volume    int64
	Timestamp time.Time
}
