package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/njorogedev/sokoni/internal/domain"
)

// BookEntry represents a single order resting on the book.
type BookEntry struct {
	Market    bool // market orders outrank every limit price on their side
	Price     int64
	CreatedAt time.Time
	OrderID   string
	Order     *domain.Order
}

// PriceLevel is an aggregated price level in the order book. Market orders
// aggregate into a single level with Price 0.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// buyLess defines ordering for the buy side: market orders first, then
// price descending, then created_at ascending, then order_id ascending.
// Min() returns the best buy.
func buyLess(a, b BookEntry) bool {
	if a.Market != b.Market {
		return a.Market
	}
	if !a.Market && a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// sellLess defines ordering for the sell side: market orders first, then
// price ascending, then created_at ascending, then order_id ascending.
// Min() returns the best sell.
func sellLess(a, b BookEntry) bool {
	if a.Market != b.Market {
		return a.Market
	}
	if !a.Market && a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// OrderBook maintains the resting orders for a single instrument: B-trees
// for the buy and sell sides with a secondary index for O(log n) removal,
// plus a pen of untriggered stop orders held off the book.
//
// mu is the instrument's critical section: the engine holds it for an
// entire match-and-settle run, so at most one settlement run is in flight
// per instrument.
type OrderBook struct {
	ticker string
	mu     sync.RWMutex
	buys   *btree.BTreeG[BookEntry]
	sells  *btree.BTreeG[BookEntry]
	index  map[string]BookEntry     // order_id → entry
	stops  []*domain.Order          // untriggered stops, submission order
}

// NewOrderBook creates an order book for the given ticker.
func NewOrderBook(ticker string) *OrderBook {
	const degree = 32
	return &OrderBook{
		ticker: ticker,
		buys:   btree.NewG[BookEntry](degree, buyLess),
		sells:  btree.NewG[BookEntry](degree, sellLess),
		index:  make(map[string]BookEntry),
	}
}

// RLock acquires the book's read lock, for depth queries from outside
// the engine.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the book's read lock.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// entryFor builds the book entry for an order.
func entryFor(o *domain.Order) BookEntry {
	return BookEntry{
		Market:    o.Type == domain.OrderTypeMarket,
		Price:     o.Price,
		CreatedAt: o.CreatedAt,
		OrderID:   o.ID,
		Order:     o,
	}
}

// Insert adds an order to its side of the book. The caller must hold mu.
func (ob *OrderBook) Insert(o *domain.Order) {
	entry := entryFor(o)
	if o.Side == domain.OrderSideBuy {
		ob.buys.ReplaceOrInsert(entry)
	} else {
		ob.sells.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by ID using the secondary index.
// Unknown IDs are a no-op. The caller must hold mu.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		ob.removeStop(orderID)
		return
	}
	delete(ob.index, orderID)
	// Delete is a no-op on the side the entry isn't on.
	ob.buys.Delete(entry)
	ob.sells.Delete(entry)
}

// AddStop places an untriggered stop order in the pen. The caller must
// hold mu.
func (ob *OrderBook) AddStop(o *domain.Order) {
	ob.stops = append(ob.stops, o)
}

func (ob *OrderBook) removeStop(orderID string) {
	for i, o := range ob.stops {
		if o.ID == orderID {
			ob.stops = append(ob.stops[:i], ob.stops[i+1:]...)
			return
		}
	}
}

// TakeTriggered removes and returns the stop orders whose stop price is
// touched by lastPrice, in submission order. The caller must hold mu.
func (ob *OrderBook) TakeTriggered(lastPrice int64) []*domain.Order {
	var triggered []*domain.Order
	kept := ob.stops[:0]
	for _, o := range ob.stops {
		if o.StopTouched(lastPrice) {
			triggered = append(triggered, o)
		} else {
			kept = append(kept, o)
		}
	}
	ob.stops = kept
	return triggered
}

// SnapshotBuys returns the buy side in priority order (best first).
// The caller must hold mu.
func (ob *OrderBook) SnapshotBuys() []*domain.Order {
	return snapshot(ob.buys)
}

// SnapshotSells returns the sell side in priority order (best first).
// The caller must hold mu.
func (ob *OrderBook) SnapshotSells() []*domain.Order {
	return snapshot(ob.sells)
}

func snapshot(tree *btree.BTreeG[BookEntry]) []*domain.Order {
	out := make([]*domain.Order, 0, tree.Len())
	tree.Ascend(func(e BookEntry) bool {
		out = append(out, e.Order)
		return true
	})
	return out
}

// BestBuy returns the highest-priority buy.
func (ob *OrderBook) BestBuy() (BookEntry, bool) {
	return ob.buys.Min()
}

// BestSell returns the highest-priority sell.
func (ob *OrderBook) BestSell() (BookEntry, bool) {
	return ob.sells.Min()
}

// TopBuys returns up to n aggregated price levels from the buy side,
// best first.
func (ob *OrderBook) TopBuys(n int) []PriceLevel {
	return topLevels(ob.buys, n)
}

// TopSells returns up to n aggregated price levels from the sell side,
// best first.
func (ob *OrderBook) TopSells(n int) []PriceLevel {
	return topLevels(ob.sells, n)
}

// topLevels iterates a side in priority order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		price := entry.Price
		if entry.Market {
			price = 0
		}
		if len(levels) > 0 && levels[len(levels)-1].Price == price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity()
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         price,
			TotalQuantity: entry.Order.RemainingQuantity(),
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BuyCount returns the number of individual buy orders on the book.
func (ob *OrderBook) BuyCount() int {
	return ob.buys.Len()
}

// SellCount returns the number of individual sell orders on the book.
func (ob *OrderBook) SellCount() int {
	return ob.sells.Len()
}

// StopCount returns the number of untriggered stop orders in the pen.
func (ob *OrderBook) StopCount() int {
	return len(ob.stops)
}

// BookManager is a thread-safe map of ticker → OrderBook. Books for
// different instruments are fully independent.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given ticker, creating one
// if it doesn't already exist.
func (bm *BookManager) GetOrCreate(ticker string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[ticker]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[ticker]; ok {
		return book
	}
	book = NewOrderBook(ticker)
	bm.books[ticker] = book
	return book
}
