package store

import (
	"sync"
	"time"

	"github.com/njorogedev/sokoni/internal/domain"
)

// QuoteStore keeps the latest market quote per ticker. It is the engine's
// market data source: LatestPrice feeds portfolio valuation and stop
// triggering, and executed trades mark the tape through MarkLastTrade.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]*domain.Quote
}

// NewQuoteStore creates an empty QuoteStore.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		quotes: make(map[string]*domain.Quote),
	}
}

// Put stores q as the latest quote for its ticker. Quotes older than the
// stored one are ignored.
func (s *QuoteStore) Put(q *domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.quotes[q.Ticker]
	if ok && cur.Timestamp.After(q.Timestamp) {
		return
	}
	s.quotes[q.Ticker] = q
}

// Latest returns the latest quote for a ticker.
func (s *QuoteStore) Latest(ticker string) (*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[ticker]
	if !ok {
		return nil, domain.ErrQuoteNotFound
	}
	return q, nil
}

// LatestPrice returns the latest known price for a ticker and whether one
// is known.
func (s *QuoteStore) LatestPrice(ticker string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[ticker]
	if !ok || q.LastPrice <= 0 {
		return 0, false
	}
	return q.LastPrice, true
}

// MarkLastTrade records an execution price on the tape without touching
// bid/ask. Called by the settlement coordinator after each trade.
func (s *QuoteStore) MarkLastTrade(ticker string, price int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.quotes[ticker]
	if !ok {
		s.quotes[ticker] = &domain.Quote{Ticker: ticker, LastPrice: price, Timestamp: at}
		return
	}
	cur.LastPrice = price
	if at.After(cur.Timestamp) {
		cur.Timestamp = at
	}
}
