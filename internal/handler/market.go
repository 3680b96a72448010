package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/service"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
	catalog   *domain.SecurityCatalog
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService, catalog *domain.SecurityCatalog) *MarketHandler {
	return &MarketHandler{
		marketSvc: marketSvc,
		catalog:   catalog,
	}
}

// ingestQuoteRequest is the JSON request body for POST /quotes.
type ingestQuoteRequest struct {
	Ticker    string  `json:"ticker"`
	LastPrice float64 `json:"last_price"`
	BidPrice  float64 `json:"bid_price"`
	AskPrice  float64 `json:"ask_price"`
	Volume    int64   `json:"volume"`
	Timestamp *string `json:"timestamp"`
}

// quoteResponse is the JSON response for POST /quotes.
type quoteResponse struct {
	Ticker    string  `json:"ticker"`
	LastPrice float64 `json:"last_price"`
	BidPrice  float64 `json:"bid_price"`
	AskPrice  float64 `json:"ask_price"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// securityResponse is one instrument in the catalog listing.
type securityResponse struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	LotSize  int64  `json:"lot_size"`
	Status   string `json:"status"`
}

// priceResponse is the JSON response for the instrument price endpoint.
type priceResponse struct {
	Ticker       string   `json:"ticker"`
	LastPrice    *float64 `json:"last_price"`
	BidPrice     float64  `json:"bid_price"`
	AskPrice     float64  `json:"ask_price"`
	Volume       int64    `json:"volume"`
	LastTradeAt  *string  `json:"last_trade_at"`
	QuoteUpdated *string  `json:"quote_updated_at"`
}

// bookLevelResponse is one aggregated price level in the depth response.
// Market orders aggregate into a level with a null price.
type bookLevelResponse struct {
	Price         *float64 `json:"price"`
	TotalQuantity int64    `json:"total_quantity"`
	OrderCount    int      `json:"order_count"`
}

// bookResponse is the JSON response for the depth endpoint.
type bookResponse struct {
	Ticker     string              `json:"ticker"`
	Buys       []bookLevelResponse `json:"buys"`
	Sells      []bookLevelResponse `json:"sells"`
	Spread     *float64            `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

// tradeResponse is one execution in the trade tape response.
type tradeResponse struct {
	TradeID     string  `json:"trade_id"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	ExecutedAt  string  `json:"executed_at"`
}

// IngestQuote handles POST /quotes.
func (h *MarketHandler) IngestQuote(w http.ResponseWriter, r *http.Request) {
	var req ingestQuoteRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	svcReq := service.IngestQuoteRequest{
		Ticker:    req.Ticker,
		LastPrice: req.LastPrice,
		BidPrice:  req.BidPrice,
		AskPrice:  req.AskPrice,
		Volume:    req.Volume,
	}
	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "timestamp must be a valid RFC3339 timestamp")
			return
		}
		svcReq.Timestamp = &ts
	}

	quote, err := h.marketSvc.IngestQuote(svcReq)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Ticker:    quote.Ticker,
		LastPrice: domain.FromCents(quote.LastPrice),
		BidPrice:  domain.FromCents(quote.BidPrice),
		AskPrice:  domain.FromCents(quote.AskPrice),
		Volume:    quote.Volume,
		Timestamp: formatTime(quote.Timestamp),
	})
}

// ListSecurities handles GET /securities.
func (h *MarketHandler) ListSecurities(w http.ResponseWriter, r *http.Request) {
	securities := h.catalog.List()

	resp := make([]securityResponse, len(securities))
	for i, s := range securities {
		resp[i] = securityResponse{
			Ticker:   s.Ticker,
			Name:     s.Name,
			Currency: s.Currency,
			LotSize:  s.LotSize,
			Status:   string(s.Status),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"securities": resp})
}

// Price handles GET /securities/{ticker}/price.
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	price, err := h.marketSvc.Price(ticker)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := priceResponse{
		Ticker:       price.Ticker,
		BidPrice:     domain.FromCents(price.BidPrice),
		AskPrice:     domain.FromCents(price.AskPrice),
		Volume:       price.Volume,
		LastTradeAt:  formatTimePtr(price.LastTradeAt),
		QuoteUpdated: formatTimePtr(price.QuoteUpdated),
	}
	if price.LastPrice != nil {
		lp := domain.FromCents(*price.LastPrice)
		resp.LastPrice = &lp
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Book handles GET /securities/{ticker}/book.
func (h *MarketHandler) Book(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error
		depth, err = strconv.Atoi(d)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a valid integer")
			return
		}
	}

	book, err := h.marketSvc.Book(ticker, depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := bookResponse{
		Ticker:     book.Ticker,
		Buys:       buildBookLevels(book.Buys),
		Sells:      buildBookLevels(book.Sells),
		SnapshotAt: formatTime(book.SnapshotAt),
	}
	if book.Spread != nil {
		sp := domain.FromCents(*book.Spread)
		resp.Spread = &sp
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Trades handles GET /securities/{ticker}/trades.
func (h *MarketHandler) Trades(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	trades, err := h.marketSvc.Trades(ticker, limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := make([]tradeResponse, len(trades))
	for i, tr := range trades {
		resp[i] = tradeResponse{
			TradeID:     tr.TradeID,
			BuyOrderID:  tr.BuyOrderID,
			SellOrderID: tr.SellOrderID,
			Price:       domain.FromCents(tr.Price),
			Quantity:    tr.Quantity,
			ExecutedAt:  formatTime(tr.ExecutedAt),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ticker": ticker, "trades": resp})
}

func buildBookLevels(levels []service.BookPriceLevel) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, lvl := range levels {
		blr := bookLevelResponse{
			TotalQuantity: lvl.TotalQuantity,
			OrderCount:    lvl.OrderCount,
		}
		if lvl.Price > 0 {
			p := domain.FromCents(lvl.Price)
			blr.Price = &p
		}
		out[i] = blr
	}
	return out
}

// mapMarketError maps domain errors to HTTP responses for market data
// endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrSecurityNotFound):
		WriteError(w, http.StatusNotFound, "security_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
