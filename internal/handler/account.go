package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
	}
}

// openAccountRequest is the JSON request body for POST /accounts.
type openAccountRequest struct {
	AccountID       string         `json:"account_id"`
	InitialCash     float64        `json:"initial_cash"`
	InitialHoldings []holdingInput `json:"initial_holdings"`
}

// holdingInput is a single holding in the registration request.
type holdingInput struct {
	Ticker   string  `json:"ticker"`
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	AccountID   string            `json:"account_id"`
	PortfolioID string            `json:"portfolio_id"`
	CashBalance float64           `json:"cash_balance"`
	Holdings    []holdingResponse `json:"holdings"`
	CreatedAt   string            `json:"created_at"`
}

// holdingResponse is a single holding in the account response.
type holdingResponse struct {
	Ticker   string  `json:"ticker"`
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// positionResponse is a single position in the portfolio response.
type positionResponse struct {
	Ticker       string   `json:"ticker"`
	Quantity     int64    `json:"quantity"`
	AvgCost      float64  `json:"avg_cost"`
	MarketPrice  *float64 `json:"market_price"`
	MarketValue  float64  `json:"market_value"`
	CostBasis    float64  `json:"cost_basis"`
	UnrealizedPL float64  `json:"unrealized_pl"`
}

// portfolioResponse is the JSON response for the portfolio endpoint.
type portfolioResponse struct {
	AccountID    string             `json:"account_id"`
	PortfolioID  string             `json:"portfolio_id"`
	CashBalance  float64            `json:"cash_balance"`
	Positions    []positionResponse `json:"positions"`
	MarketValue  float64            `json:"market_value"`
	TotalCost    float64            `json:"total_cost"`
	UnrealizedPL float64            `json:"unrealized_pl"`
	TotalValue   float64            `json:"total_value"`
	AsOf         string             `json:"as_of"`
}

// orderListResponse is the JSON response for the account orders endpoint.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// Open handles POST /accounts.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	holdings := make([]service.HoldingInput, len(req.InitialHoldings))
	for i, hi := range req.InitialHoldings {
		holdings[i] = service.HoldingInput{
			Ticker:   hi.Ticker,
			Quantity: hi.Quantity,
			AvgCost:  hi.AvgCost,
		}
	}

	acct, pf, err := h.accountSvc.Open(service.OpenAccountRequest{
		AccountID:       req.AccountID,
		InitialCash:     req.InitialCash,
		InitialHoldings: holdings,
	})
	if err != nil {
		mapAccountError(w, err)
		return
	}

	tickers := make([]string, 0, len(pf.Positions))
	for ticker := range pf.Positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	respHoldings := make([]holdingResponse, 0, len(tickers))
	for _, ticker := range tickers {
		pos := pf.Positions[ticker]
		respHoldings = append(respHoldings, holdingResponse{
			Ticker:   pos.Ticker,
			Quantity: pos.Quantity,
			AvgCost:  domain.FromCents(pos.AvgCost),
		})
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID:   acct.AccountID,
		PortfolioID: acct.PortfolioID,
		CashBalance: domain.FromCents(pf.CashBalance),
		Holdings:    respHoldings,
		CreatedAt:   formatTime(acct.CreatedAt),
	})
}

// Portfolio handles GET /accounts/{account_id}/portfolio.
func (h *AccountHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	view, err := h.accountSvc.Portfolio(accountID)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	positions := make([]positionResponse, len(view.Positions))
	for i, p := range view.Positions {
		pr := positionResponse{
			Ticker:       p.Ticker,
			Quantity:     p.Quantity,
			AvgCost:      domain.FromCents(p.AvgCost),
			MarketValue:  domain.FromCents(p.MarketValue),
			CostBasis:    domain.FromCents(p.CostBasis),
			UnrealizedPL: domain.FromCents(p.UnrealizedPL),
		}
		if p.MarketPrice != nil {
			mp := domain.FromCents(*p.MarketPrice)
			pr.MarketPrice = &mp
		}
		positions[i] = pr
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		AccountID:    view.AccountID,
		PortfolioID:  view.PortfolioID,
		CashBalance:  domain.FromCents(view.CashBalance),
		Positions:    positions,
		MarketValue:  domain.FromCents(view.MarketValue),
		TotalCost:    domain.FromCents(view.TotalCost),
		UnrealizedPL: domain.FromCents(view.UnrealizedPL),
		TotalValue:   domain.FromCents(view.TotalValue),
		AsOf:         formatTime(view.AsOf),
	})
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	orders, total, err := h.orderSvc.List(accountID, statusFilter, page, limit)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// mapAccountError maps domain errors to HTTP responses for account
// endpoints.
func mapAccountError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		WriteError(w, http.StatusConflict, "account_already_exists", err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrSecurityNotFound):
		WriteError(w, http.StatusNotFound, "security_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
