package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/events"
)

// ExpiryManager tracks resting orders sorted by expiry deadline and
// periodically expires orders whose deadline has passed. Only orders with
// an ExpiresAt (day orders) are tracked; GTC orders never enter it.
type ExpiryManager struct {
	interval     time.Duration
	books        *BookManager
	dispatcher   EventDispatcher
	activeOrders []*domain.Order // sorted by ExpiresAt ASC
	mu           sync.Mutex      // protects activeOrders
}

// NewExpiryManager creates an ExpiryManager ticking at interval.
func NewExpiryManager(interval time.Duration, books *BookManager, dispatcher EventDispatcher) *ExpiryManager {
	return &ExpiryManager{
		interval:     interval,
		books:        books,
		dispatcher:   dispatcher,
		activeOrders: make([]*domain.Order, 0),
	}
}

// Add inserts an order into the sorted activeOrders slice, maintaining
// ExpiresAt ASC order. Orders without a deadline are ignored.
func (e *ExpiryManager) Add(order *domain.Order) {
	if order.ExpiresAt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	expiresAt := *order.ExpiresAt
	idx := sort.Search(len(e.activeOrders), func(i int) bool {
		return e.activeOrders[i].ExpiresAt.After(expiresAt)
	})
	e.activeOrders = append(e.activeOrders, nil)
	copy(e.activeOrders[idx+1:], e.activeOrders[idx:])
	e.activeOrders[idx] = order
}

// Remove deletes an order from the activeOrders slice by order ID.
func (e *ExpiryManager) Remove(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, o := range e.activeOrders {
		if o.ID == orderID {
			e.activeOrders = append(e.activeOrders[:i], e.activeOrders[i+1:]...)
			return
		}
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and expires due orders. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.tick(t)
			}
		}
	}()
}

// tick pops every order due at or before now off the front of the sorted
// slice and expires it.
func (e *ExpiryManager) tick(now time.Time) {
	e.mu.Lock()
	var toExpire []*domain.Order
	cutoff := 0
	for cutoff < len(e.activeOrders) {
		o := e.activeOrders[cutoff]
		if o.ExpiresAt == nil || o.ExpiresAt.After(now) {
			break
		}
		toExpire = append(toExpire, o)
		cutoff++
	}
	if cutoff > 0 {
		e.activeOrders = e.activeOrders[cutoff:]
	}
	e.mu.Unlock()

	for _, order := range toExpire {
		e.expireOrder(order, now)
	}
}

// expireOrder transitions a single order to expired under its book lock
// and removes it from the book. Orders already terminal are left alone.
func (e *ExpiryManager) expireOrder(order *domain.Order, now time.Time) {
	book := e.books.GetOrCreate(order.Ticker)

	book.mu.Lock()
	if err := order.Expire(now); err != nil {
		// Filled or cancelled since the last tick.
		book.mu.Unlock()
		return
	}
	book.Remove(order.ID)
	book.mu.Unlock()

	e.dispatcher.Dispatch(events.Event{
		Type:      events.TypeOrderExpired,
		Ticker:    order.Ticker,
		At:        now,
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Status:    string(order.Status),
	})
}

// ActiveOrderCount returns the number of orders currently tracked for
// expiration. Useful for testing.
func (e *ExpiryManager) ActiveOrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeOrders)
}
