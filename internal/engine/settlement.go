package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/events"
	"github.com/njorogedev/sokoni/internal/store"
)

// MarketData is the engine's view of the market data source. Settlement
// uses it for portfolio valuation and for marking executions on the tape;
// execution prices themselves come from the matched orders.
type MarketData interface {
	LatestPrice(ticker string) (int64, bool)
	MarkLastTrade(ticker string, price int64, at time.Time)
}

// Settler is the settlement coordinator: it applies trade proposals
// atomically, updating orders, positions, portfolio valuations, and the
// trade ledger, and staging events on the outbox. It holds no persistent
// state of its own — it operates entirely on the ledgers passed to it.
type Settler struct {
	orders     *store.OrderStore
	portfolios *store.PortfolioStore
	trades     *store.TradeStore
	market     MarketData
}

// NewSettler creates a Settler over the given ledgers.
func NewSettler(
	orders *store.OrderStore,
	portfolios *store.PortfolioStore,
	trades *store.TradeStore,
	market MarketData,
) *Settler {
	return &Settler{
		orders:     orders,
		portfolios: portfolios,
		trades:     trades,
		market:     market,
	}
}

// Apply settles one proposed trade. The caller must hold the instrument's
// book lock, making the whole application one atomic unit: all of the
// trade's state changes happen under the locks or none do.
//
// Re-validation failures (order no longer matchable, insufficient
// remaining quantity) skip the proposal silently — a later matching run
// retries against fresh state. Capacity failures reject the incapable
// order with a reason and leave the counter-order untouched.
//
// Returns true if the trade settled.
func (s *Settler) Apply(book *OrderBook, p TradeProposal, outbox *events.Outbox) bool {
	now := time.Now()

	buy, err := s.orders.Get(p.BuyOrderID)
	if err != nil {
		return false
	}
	sell, err := s.orders.Get(p.SellOrderID)
	if err != nil {
		return false
	}

	// Re-validate against mutation between proposal and application: an
	// earlier proposal in this batch may have rejected or filled either
	// side.
	if !buy.Matchable() || !sell.Matchable() {
		return false
	}
	if buy.RemainingQuantity() < p.Quantity || sell.RemainingQuantity() < p.Quantity {
		return false
	}

	buyPf, err := s.portfolios.Get(buy.PortfolioID)
	if err != nil {
		s.reject(book, buy, "portfolio_not_found", now, outbox)
		return false
	}
	sellPf, err := s.portfolios.Get(sell.PortfolioID)
	if err != nil {
		s.reject(book, sell, "portfolio_not_found", now, outbox)
		return false
	}

	unlock := lockPair(buyPf, sellPf)
	defer unlock()

	// Capacity checks precede every mutation, so a rejection leaves no
	// partial effects behind.
	cost := p.Quantity * p.Price
	if buyPf.CashBalance < cost {
		s.reject(book, buy, domain.RejectReasonInsufficientCash, now, outbox)
		return false
	}
	pos := sellPf.Position(sell.Ticker)
	if pos == nil || pos.Quantity < p.Quantity {
		s.reject(book, sell, domain.RejectReasonInsufficientHoldings, now, outbox)
		return false
	}

	// The fills cannot fail after re-validation above.
	if err := buy.Fill(p.Quantity, p.Price, now); err != nil {
		return false
	}
	if err := sell.Fill(p.Quantity, p.Price, now); err != nil {
		return false
	}

	buyPf.ApplyBuy(buy.Ticker, p.Quantity, p.Price)
	realized := sellPf.ApplySell(sell.Ticker, p.Quantity, p.Price)

	// Mark the tape before revaluing so both portfolios see the
	// execution price as the latest.
	s.market.MarkLastTrade(buy.Ticker, p.Price, now)
	buyPf.Revalue(s.market.LatestPrice)
	if sellPf != buyPf {
		sellPf.Revalue(s.market.LatestPrice)
	}

	trade := &domain.Trade{
		TradeID:     uuid.NewString(),
		Ticker:      buy.Ticker,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Price:       p.Price,
		Quantity:    p.Quantity,
		ExecutedAt:  now,
	}
	s.trades.Append(trade)

	// Fully filled orders leave the book.
	if buy.Status == domain.OrderStatusFilled {
		book.Remove(buy.ID)
	}
	if sell.Status == domain.OrderStatusFilled {
		book.Remove(sell.ID)
	}

	outbox.Add(fillEvent(buy, p.Quantity, now))
	outbox.Add(fillEvent(sell, p.Quantity, now))
	outbox.Add(events.Event{
		Type:        events.TypeTradeExecuted,
		Ticker:      trade.Ticker,
		At:          now,
		TradeID:     trade.TradeID,
		BuyOrderID:  trade.BuyOrderID,
		SellOrderID: trade.SellOrderID,
		Quantity:    trade.Quantity,
		Price:       trade.Price,
		RealizedPL:  realized,
	})

	return true
}

// reject transitions an order to rejected, removes it from the book, and
// stages the order_rejected event.
func (s *Settler) reject(book *OrderBook, o *domain.Order, reason string, now time.Time, outbox *events.Outbox) {
	if err := o.Reject(reason, now); err != nil {
		return
	}
	book.Remove(o.ID)
	outbox.Add(events.Event{
		Type:      events.TypeOrderRejected,
		Ticker:    o.Ticker,
		At:        now,
		OrderID:   o.ID,
		AccountID: o.AccountID,
		Status:    string(o.Status),
		Reason:    reason,
	})
}

// fillEvent builds the order_filled event for one side of a settled trade.
func fillEvent(o *domain.Order, delta int64, now time.Time) events.Event {
	return events.Event{
		Type:           events.TypeOrderFilled,
		Ticker:         o.Ticker,
		At:             now,
		OrderID:        o.ID,
		AccountID:      o.AccountID,
		FilledDelta:    delta,
		FilledQuantity: o.FilledQuantity,
		AvgFillPrice:   o.AvgFillPrice,
		Status:         string(o.Status),
	}
}

// lockPair locks one or two portfolios in a fixed order keyed by
// portfolio ID, so settlement runs on different instruments touching the
// same portfolios cannot deadlock. The returned func unlocks them.
func lockPair(a, b *domain.Portfolio) func() {
	if a == b {
		a.Mu.Lock()
		return a.Mu.Unlock
	}
	if b.PortfolioID < a.PortfolioID {
		a, b = b, a
	}
	a.Mu.Lock()
	b.Mu.Lock()
	return func() {
		b.Mu.Unlock()
		a.Mu.Unlock()
	}
}
