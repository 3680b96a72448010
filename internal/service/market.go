package service

import (
	"time"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/engine"
	"github.com/njorogedev/sokoni/internal/store"
)

// IngestQuoteRequest represents one market-data tick pushed into the
// exchange. Prices arrive as decimal currency amounts.
type IngestQuoteRequest struct {
	Ticker    string
	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	Volume    int64
	Timestamp *time.Time // defaults to now
}

// PriceResponse represents the response for the instrument price endpoint.
type PriceResponse struct {
	Ticker       string
	LastPrice    *int64 // nil when the instrument has never ticked or traded
	BidPrice     int64
	AskPrice     int64
	Volume       int64
	LastTradeAt  *time.Time // nil when no trades ever
	QuoteUpdated *time.Time // nil when no quote ever ingested
}

// BookPriceLevel represents an aggregated price level in the book
// response. Market orders aggregate into a level with price 0.
type BookPriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// BookResponse represents the response for the depth endpoint.
type BookResponse struct {
	Ticker     string
	Buys       []BookPriceLevel
	Sells      []BookPriceLevel
	Spread     *int64 // nil if either side empty or topped by a market order
	SnapshotAt time.Time
}

// TradeView is one execution in the trade tape response.
type TradeView struct {
	TradeID     string
	BuyOrderID  string
	SellOrderID string
	Price       int64
	Quantity    int64
	ExecutedAt  time.Time
}

// MarketService handles quote ingestion and market data queries. Ingested
// quotes drive stop-order triggering and portfolio valuation.
type MarketService struct {
	engine  *engine.Engine
	quotes  *store.QuoteStore
	trades  *store.TradeStore
	catalog *domain.SecurityCatalog
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	eng *engine.Engine,
	quotes *store.QuoteStore,
	trades *store.TradeStore,
	catalog *domain.SecurityCatalog,
) *MarketService {
	return &MarketService{
		engine:  eng,
		quotes:  quotes,
		trades:  trades,
		catalog: catalog,
	}
}

// IngestQuote validates and stores a tick, then notifies the engine so
// stops can trigger and matching can run against the fresh price.
func (s *MarketService) IngestQuote(req IngestQuoteRequest) (*domain.Quote, error) {
	if !tickerRegex.MatchString(req.Ticker) {
		return nil, &domain.ValidationError{
			Message: "ticker must match ^[A-Z]{1,10}$",
		}
	}
	if _, err := s.catalog.Get(req.Ticker); err != nil {
		return nil, err
	}
	if req.LastPrice <= 0 {
		return nil, &domain.ValidationError{
			Message: "last_price must be greater than 0",
		}
	}
	if req.BidPrice < 0 || req.AskPrice < 0 {
		return nil, &domain.ValidationError{
			Message: "bid_price and ask_price must be >= 0",
		}
	}
	if req.Volume < 0 {
		return nil, &domain.ValidationError{
			Message: "volume must be >= 0",
		}
	}

	lastCents, err := domain.ToCents(req.LastPrice)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "last_price must have at most 2 decimal places",
		}
	}
	bidCents, err := domain.ToCents(req.BidPrice)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "bid_price must have at most 2 decimal places",
		}
	}
	askCents, err := domain.ToCents(req.AskPrice)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "ask_price must have at most 2 decimal places",
		}
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	q := &domain.Quote{
		Ticker:    req.Ticker,
		LastPrice: lastCents,
		BidPrice:  bidCents,
		AskPrice:  askCents,
		Volume:    req.Volume,
		Timestamp: ts,
	}
	s.quotes.Put(q)

	s.engine.OnQuote(req.Ticker, lastCents)
	return q, nil
}

// Price returns the latest known price data for an instrument.
func (s *MarketService) Price(ticker string) (*PriceResponse, error) {
	if _, err := s.catalog.Get(ticker); err != nil {
		return nil, err
	}

	resp := &PriceResponse{Ticker: ticker}

	if q, err := s.quotes.Latest(ticker); err == nil {
		resp.LastPrice = &q.LastPrice
		resp.BidPrice = q.BidPrice
		resp.AskPrice = q.AskPrice
		resp.Volume = q.Volume
		ts := q.Timestamp
		resp.QuoteUpdated = &ts
	}

	trades := s.trades.ByTicker(ticker)
	if len(trades) > 0 {
		last := trades[len(trades)-1]
		at := last.ExecutedAt
		resp.LastTradeAt = &at
		if resp.LastPrice == nil {
			resp.LastPrice = &last.Price
		}
	}

	return resp, nil
}

// Book returns the top N price levels of the order book for an instrument.
func (s *MarketService) Book(ticker string, depth int) (*BookResponse, error) {
	if _, err := s.catalog.Get(ticker); err != nil {
		return nil, err
	}
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 1 and 50",
		}
	}

	book := s.engine.Book(ticker)
	book.RLock()
	defer book.RUnlock()

	topBuys := book.TopBuys(depth)
	topSells := book.TopSells(depth)

	buys := make([]BookPriceLevel, len(topBuys))
	for i, pl := range topBuys {
		buys[i] = BookPriceLevel{Price: pl.Price, TotalQuantity: pl.TotalQuantity, OrderCount: pl.OrderCount}
	}
	sells := make([]BookPriceLevel, len(topSells))
	for i, pl := range topSells {
		sells[i] = BookPriceLevel{Price: pl.Price, TotalQuantity: pl.TotalQuantity, OrderCount: pl.OrderCount}
	}

	resp := &BookResponse{
		Ticker:     ticker,
		Buys:       buys,
		Sells:      sells,
		SnapshotAt: time.Now(),
	}

	// Spread = best sell − best buy, meaningless when a market order
	// tops either side.
	if len(topBuys) > 0 && len(topSells) > 0 && topBuys[0].Price > 0 && topSells[0].Price > 0 {
		spread := topSells[0].Price - topBuys[0].Price
		resp.Spread = &spread
	}

	return resp, nil
}

// Trades returns the instrument's executions, oldest first, capped at
// the most recent limit entries.
func (s *MarketService) Trades(ticker string, limit int) ([]TradeView, error) {
	if _, err := s.catalog.Get(ticker); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		return nil, &domain.ValidationError{
			Message: "limit must be between 1 and 500",
		}
	}

	all := s.trades.ByTicker(ticker)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]TradeView, len(all))
	for i, t := range all {
		out[i] = TradeView{
			TradeID:     t.TradeID,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Price:       t.Price,
			Quantity:    t.Quantity,
			ExecutedAt:  t.ExecutedAt,
		}
	}
	return out, nil
}
