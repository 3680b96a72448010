package domain

import "time"

// OrderType distinguishes how an order prices itself.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// OrderSide indicates whether an order buys or sells the instrument.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// TimeInForce controls how long a resting order stays eligible.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

// Order represents one trading intent submitted by an account.
//
// Status is never written directly outside this file: the transition
// methods below check the predecessor state and return a domain error
// for anything the lifecycle does not allow.
type Order struct {
	ID          string
	AccountID   string
	PortfolioID string
	Ticker      string
	Side        OrderSide
	Type        OrderType
	Quantity    int64
	Price       int64 // cents; 0 for market and untriggered stop orders
	StopPrice   int64 // cents; 0 unless stop or stop_limit
	TimeInForce TimeInForce

	FilledQuantity int64
	AvgFillPrice   int64 // volume-weighted, cents; 0 until filled > 0
	Status         OrderStatus
	RejectReason   string

	CreatedAt   time.Time // time priority
	ExpiresAt   *time.Time
	TriggeredAt *time.Time
	FilledAt    *time.Time
	CancelledAt *time.Time
	RejectedAt  *time.Time
	ExpiredAt   *time.Time
}

// RemainingQuantity returns the unfilled portion of the order.
func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.FilledQuantity
}

// IsTerminal reports whether the order has reached a final state.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Matchable reports whether the order is eligible for the matching pass.
// Untriggered stop orders are held off the book and are not matchable.
func (o *Order) Matchable() bool {
	if o.Status != OrderStatusOpen && o.Status != OrderStatusPartiallyFilled {
		return false
	}
	return !o.AwaitingTrigger()
}

// AwaitingTrigger reports whether the order is a stop or stop-limit order
// whose stop price has not been touched yet.
func (o *Order) AwaitingTrigger() bool {
	if o.Type != OrderTypeStop && o.Type != OrderTypeStopLimit {
		return false
	}
	return o.TriggeredAt == nil
}

// CanCancel reports whether the owning account may still cancel the order.
func (o *Order) CanCancel() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusOpen, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// Open promotes a validated pending order to open.
func (o *Order) Open() error {
	if o.Status != OrderStatusPending {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusOpen
	return nil
}

// Fill records a settlement of qty shares at price. FilledQuantity strictly
// increases and AvgFillPrice is recomputed as the volume-weighted mean of
// all fills. The order becomes filled exactly when FilledQuantity reaches
// Quantity.
func (o *Order) Fill(qty, price int64, now time.Time) error {
	if o.Status != OrderStatusOpen && o.Status != OrderStatusPartiallyFilled {
		return ErrInvalidTransition
	}
	if qty <= 0 || qty > o.RemainingQuantity() {
		return ErrInvalidFill
	}

	total := o.AvgFillPrice*o.FilledQuantity + price*qty
	o.FilledQuantity += qty
	o.AvgFillPrice = total / o.FilledQuantity

	if o.FilledQuantity == o.Quantity {
		o.Status = OrderStatusFilled
		t := now
		o.FilledAt = &t
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	return nil
}

// Cancel moves the order to cancelled. Terminal orders cannot be cancelled.
func (o *Order) Cancel(now time.Time) error {
	if !o.CanCancel() {
		return ErrOrderNotCancellable
	}
	o.Status = OrderStatusCancelled
	t := now
	o.CancelledAt = &t
	return nil
}

// Reject marks the order rejected with a reason. Used at settlement time
// when the owning account cannot honor the matched trade.
func (o *Order) Reject(reason string, now time.Time) error {
	switch o.Status {
	case OrderStatusPending, OrderStatusOpen, OrderStatusPartiallyFilled:
	default:
		return ErrInvalidTransition
	}
	o.Status = OrderStatusRejected
	o.RejectReason = reason
	t := now
	o.RejectedAt = &t
	return nil
}

// Expire marks a resting order expired once its deadline has passed.
func (o *Order) Expire(now time.Time) error {
	switch o.Status {
	case OrderStatusOpen, OrderStatusPartiallyFilled:
	default:
		return ErrInvalidTransition
	}
	o.Status = OrderStatusExpired
	t := now
	o.ExpiredAt = &t
	return nil
}

// Trigger converts a stop order into its post-trigger form: a plain stop
// becomes a market order and a stop-limit becomes a limit order at its
// limit price. The order then enters the book for the next matching pass.
func (o *Order) Trigger(now time.Time) error {
	if !o.AwaitingTrigger() || o.Status != OrderStatusOpen {
		return ErrInvalidTransition
	}
	switch o.Type {
	case OrderTypeStop:
		o.Type = OrderTypeMarket
		o.Price = 0
	case OrderTypeStopLimit:
		o.Type = OrderTypeLimit
	}
	t := now
	o.TriggeredAt = &t
	return nil
}

// StopTouched reports whether lastPrice crosses the order's stop price:
// a buy stop triggers at or above it, a sell stop at or below it.
func (o *Order) StopTouched(lastPrice int64) bool {
	if !o.AwaitingTrigger() {
		return false
	}
	if o.Side == OrderSideBuy {
		return lastPrice >= o.StopPrice
	}
	return lastPrice <= o.StopPrice
}
