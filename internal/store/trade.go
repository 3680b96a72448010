package store

import (
	"sync"

	"github.com/njorogedev/sokoni/internal/domain"
)

// TradeStore is a thread-safe ledger of settled trades, keyed by ticker.
// Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // ticker → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to the ticker's chronological list.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.Ticker] = append(s.trades[t.Ticker], t)
}

// ByTicker returns all trades for a ticker in chronological order.
// Returns an empty slice if no trades exist for the ticker.
func (s *TradeStore) ByTicker(ticker string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[ticker]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Copy so callers cannot mutate the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// LastPrice returns the most recent execution price for a ticker.
func (s *TradeStore) LastPrice(ticker string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[ticker]
	if len(trades) == 0 {
		return 0, false
	}
	return trades[len(trades)-1].Price, true
}
