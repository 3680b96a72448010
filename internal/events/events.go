// Package events defines the settlement and state-transition events the
// engine produces, the outbox they are staged on during a matching run,
// and the dispatcher that delivers them to sinks after the run commits.
package events

import "time"

// Type identifies an engine event.
type Type string

const (
	TypeOrderOpened    Type = "order_opened"
	TypeOrderFilled    Type = "order_filled"
	TypeOrderCancelled Type = "order_cancelled"
	TypeOrderRejected  Type = "order_rejected"
	TypeOrderExpired   Type = "order_expired"
	TypeOrderTriggered Type = "order_triggered"
	TypeTradeExecuted  Type = "trade_executed"
)

// Event is one engine occurrence, consumed by the audit and broadcast
// sinks. Seq is assigned by the dispatcher at publish time and is strictly
// increasing across all events.
type Event struct {
	Seq    uint64    `json:"seq"`
	Type   Type      `json:"type"`
	Ticker string    `json:"ticker"`
	At     time.Time `json:"at"`

	// Order fields, set for the order_* event types.
	OrderID        string `json:"order_id,omitempty"`
	AccountID      string `json:"account_id,omitempty"`
	FilledDelta    int64  `json:"filled_delta,omitempty"`
	FilledQuantity int64  `json:"filled_quantity,omitempty"`
	AvgFillPrice   int64  `json:"avg_fill_price,omitempty"`
	Status         string `json:"status,omitempty"`
	Reason         string `json:"reason,omitempty"`

	// Trade fields, set for trade_executed.
	TradeID     string `json:"trade_id,omitempty"`
	BuyOrderID  string `json:"buy_order_id,omitempty"`
	SellOrderID string `json:"sell_order_id,omitempty"`
	Quantity    int64  `json:"quantity,omitempty"`
	Price       int64  `json:"price,omitempty"`
	RealizedPL  int64  `json:"realized_pl,omitempty"`
}

// Outbox accumulates events inside the per-instrument critical section.
// The engine drains it and hands the events to the dispatcher only after
// the settlement run has committed, so sink failures can never roll back
// settlement.
type Outbox struct {
	evts []Event
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Add stages an event.
func (o *Outbox) Add(e Event) {
	o.evts = append(o.evts, e)
}

// Drain returns the staged events in order and empties the outbox.
func (o *Outbox) Drain() []Event {
	evts := o.evts
	o.evts = nil
	return evts
}

// Len returns the number of staged events.
func (o *Outbox) Len() int {
	return len(o.evts)
}
