// Package engine implements the order matching and settlement engine:
// per-instrument order books, the price/time priority matching algorithm,
// and the settlement coordinator that applies matched trades atomically.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/events"
	"github.com/njorogedev/sokoni/internal/store"
)

// EventDispatcher receives the events staged during a matching run after
// the run's critical section has been released.
type EventDispatcher interface {
	Dispatch(evts ...events.Event)
}

// Engine exposes the two operations external callers invoke: Submit and
// RunMatching, plus cancellation and the quote hook that drives stop
// triggering. All mutation of orders, positions, and portfolios funnels
// through here under per-instrument book locks.
type Engine struct {
	books      *BookManager
	orders     *store.OrderStore
	portfolios *store.PortfolioStore
	trades     *store.TradeStore
	market     MarketData
	settler    *Settler
	dispatcher EventDispatcher
	logger     *slog.Logger
}

// New creates an Engine over the given ledgers and market data source.
func New(
	books *BookManager,
	orders *store.OrderStore,
	portfolios *store.PortfolioStore,
	trades *store.TradeStore,
	market MarketData,
	dispatcher EventDispatcher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		books:      books,
		orders:     orders,
		portfolios: portfolios,
		trades:     trades,
		market:     market,
		settler:    NewSettler(orders, portfolios, trades, market),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Submit persists a validated order as open and runs matching for its
// instrument. The caller (the order service) has already performed
// request validation; Submit assigns identity and timestamps, promotes
// the order pending → open, and makes it visible to matching only once it
// is fully persisted.
func (e *Engine) Submit(o *domain.Order) error {
	o.ID = uuid.NewString()
	o.CreatedAt = time.Now()
	o.Status = domain.OrderStatusPending

	book := e.books.GetOrCreate(o.Ticker)
	book.mu.Lock()
	if err := o.Open(); err != nil {
		book.mu.Unlock()
		return err
	}
	e.orders.Create(o)
	if o.AwaitingTrigger() {
		book.AddStop(o)
	} else {
		book.Insert(o)
	}
	book.mu.Unlock()

	e.dispatcher.Dispatch(events.Event{
		Type:      events.TypeOrderOpened,
		Ticker:    o.Ticker,
		At:        o.CreatedAt,
		OrderID:   o.ID,
		AccountID: o.AccountID,
		Status:    string(o.Status),
	})

	e.RunMatching(o.Ticker)
	return nil
}

// RunMatching runs one match-and-settle pass for an instrument. It is
// idempotent: with no new orders between calls it produces no additional
// trades. The book lock is held for the whole pass, so at most one
// settlement run is in flight per instrument; events are dispatched only
// after the lock is released.
func (e *Engine) RunMatching(ticker string) {
	book := e.books.GetOrCreate(ticker)

	book.mu.Lock()
	proposals := ProposeTrades(book.SnapshotBuys(), book.SnapshotSells())
	outbox := events.NewOutbox()
	settled := 0
	for _, p := range proposals {
		if e.settler.Apply(book, p, outbox) {
			settled++
		}
	}
	book.mu.Unlock()

	if len(proposals) > 0 {
		e.logger.Debug("matching pass complete",
			slog.String("ticker", ticker),
			slog.Int("proposed", len(proposals)),
			slog.Int("settled", settled),
		)
	}

	e.dispatcher.Dispatch(outbox.Drain()...)
}

// Cancel cancels a pending, open, or partially filled order and removes
// it from its book. Terminal orders return ErrOrderNotCancellable.
func (e *Engine) Cancel(orderID string) (*domain.Order, error) {
	o, err := e.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanCancel() {
		return nil, domain.ErrOrderNotCancellable
	}

	book := e.books.GetOrCreate(o.Ticker)
	book.mu.Lock()
	// Re-check under the lock: a settlement run may have finished the
	// order in the meantime.
	now := time.Now()
	if err := o.Cancel(now); err != nil {
		book.mu.Unlock()
		return nil, err
	}
	book.Remove(o.ID)
	book.mu.Unlock()

	e.dispatcher.Dispatch(events.Event{
		Type:      events.TypeOrderCancelled,
		Ticker:    o.Ticker,
		At:        now,
		OrderID:   o.ID,
		AccountID: o.AccountID,
		Status:    string(o.Status),
	})
	return o, nil
}

// OnQuote reacts to a new market price for an instrument: stop orders
// whose stop price is touched are triggered onto the book, and a matching
// pass runs so the fresh price can cross resting orders.
func (e *Engine) OnQuote(ticker string, lastPrice int64) {
	book := e.books.GetOrCreate(ticker)

	book.mu.Lock()
	triggered := book.TakeTriggered(lastPrice)
	now := time.Now()
	outbox := events.NewOutbox()
	for _, o := range triggered {
		if err := o.Trigger(now); err != nil {
			continue
		}
		book.Insert(o)
		outbox.Add(events.Event{
			Type:      events.TypeOrderTriggered,
			Ticker:    o.Ticker,
			At:        now,
			OrderID:   o.ID,
			AccountID: o.AccountID,
			Status:    string(o.Status),
		})
	}
	book.mu.Unlock()

	e.dispatcher.Dispatch(outbox.Drain()...)
	e.RunMatching(ticker)
}

// Book returns the order book for a ticker, for depth queries.
func (e *Engine) Book(ticker string) *OrderBook {
	return e.books.GetOrCreate(ticker)
}
