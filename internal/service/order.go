package service

import (
	"fmt"
	"time"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/engine"
	"github.com/njorogedev/sokoni/internal/store"
)

// ValidOrderStatuses lists all valid order status values for filtering.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:         true,
	domain.OrderStatusOpen:            true,
	domain.OrderStatusPartiallyFilled: true,
	domain.OrderStatusFilled:          true,
	domain.OrderStatusCancelled:       true,
	domain.OrderStatusRejected:        true,
	domain.OrderStatusExpired:         true,
}

// SubmitOrderRequest represents the input for order submission. Prices
// arrive as decimal currency amounts and are converted to cents.
type SubmitOrderRequest struct {
	AccountID   string
	Ticker      string
	Side        domain.OrderSide
	Type        domain.OrderType
	Quantity    int64
	Price       *float64 // required for limit and stop_limit
	StopPrice   *float64 // required for stop and stop_limit
	TimeInForce domain.TimeInForce
	ExpiresAt   *time.Time // required for day orders
}

// OrderService handles order submission, retrieval, cancellation, and
// listing. Validation happens here; accepted orders then funnel into the
// engine under the instrument's book lock.
type OrderService struct {
	engine     *engine.Engine
	expiry     *engine.ExpiryManager
	orders     *store.OrderStore
	portfolios *store.PortfolioStore
	catalog    *domain.SecurityCatalog
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	eng *engine.Engine,
	expiry *engine.ExpiryManager,
	orders *store.OrderStore,
	portfolios *store.PortfolioStore,
	catalog *domain.SecurityCatalog,
) *OrderService {
	return &OrderService{
		engine:     eng,
		expiry:     expiry,
		orders:     orders,
		portfolios: portfolios,
		catalog:    catalog,
	}
}

// Submit validates the request and hands the order to the engine. A
// validation failure returns synchronously and persists nothing.
func (s *OrderService) Submit(req SubmitOrderRequest) (*domain.Order, error) {
	switch req.Type {
	case domain.OrderTypeMarket, domain.OrderTypeLimit, domain.OrderTypeStop, domain.OrderTypeStopLimit:
	default:
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: market, limit, stop, stop_limit", req.Type),
		}
	}

	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if !tickerRegex.MatchString(req.Ticker) {
		return nil, &domain.ValidationError{
			Message: "ticker must match ^[A-Z]{1,10}$",
		}
	}

	sec, err := s.catalog.Get(req.Ticker)
	if err != nil {
		return nil, err
	}
	if !sec.Tradable() {
		return nil, domain.ErrSecurityNotTradable
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	if !sec.ValidLotQuantity(req.Quantity) {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("quantity must be a multiple of the lot size %d for %s", sec.LotSize, sec.Ticker),
		}
	}

	priceCents, stopCents, err := s.validatePrices(req)
	if err != nil {
		return nil, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = domain.TimeInForceGTC
	}
	switch tif {
	case domain.TimeInForceDay:
		if req.ExpiresAt == nil {
			return nil, &domain.ValidationError{
				Message: "expires_at is required for day orders",
			}
		}
		if !req.ExpiresAt.After(time.Now()) {
			return nil, &domain.ValidationError{
				Message: "expires_at must be a future timestamp",
			}
		}
	case domain.TimeInForceGTC:
		if req.ExpiresAt != nil {
			return nil, &domain.ValidationError{
				Message: "gtc orders must not include expires_at",
			}
		}
	default:
		return nil, &domain.ValidationError{
			Message: "time_in_force must be 'day' or 'gtc'",
		}
	}

	acct, err := s.portfolios.Account(req.AccountID)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		AccountID:   acct.AccountID,
		PortfolioID: acct.PortfolioID,
		Ticker:      req.Ticker,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		Price:       priceCents,
		StopPrice:   stopCents,
		TimeInForce: tif,
		ExpiresAt:   req.ExpiresAt,
	}

	if err := s.engine.Submit(order); err != nil {
		return nil, err
	}
	if !order.IsTerminal() {
		s.expiry.Add(order)
	}
	return order, nil
}

// validatePrices enforces the per-type price rules and converts the
// decimal inputs to cents.
func (s *OrderService) validatePrices(req SubmitOrderRequest) (priceCents, stopCents int64, err error) {
	needsPrice := req.Type == domain.OrderTypeLimit || req.Type == domain.OrderTypeStopLimit
	needsStop := req.Type == domain.OrderTypeStop || req.Type == domain.OrderTypeStopLimit

	if needsPrice {
		if req.Price == nil {
			return 0, 0, &domain.ValidationError{
				Message: fmt.Sprintf("price is required for %s orders", req.Type),
			}
		}
		if *req.Price <= 0 {
			return 0, 0, &domain.ValidationError{
				Message: "price must be greater than 0",
			}
		}
		priceCents, err = domain.ToCents(*req.Price)
		if err != nil {
			return 0, 0, &domain.ValidationError{
				Message: "price must have at most 2 decimal places",
			}
		}
	} else if req.Price != nil {
		return 0, 0, &domain.ValidationError{
			Message: fmt.Sprintf("%s orders must not include price", req.Type),
		}
	}

	if needsStop {
		if req.StopPrice == nil {
			return 0, 0, &domain.ValidationError{
				Message: fmt.Sprintf("stop_price is required for %s orders", req.Type),
			}
		}
		if *req.StopPrice <= 0 {
			return 0, 0, &domain.ValidationError{
				Message: "stop_price must be greater than 0",
			}
		}
		stopCents, err = domain.ToCents(*req.StopPrice)
		if err != nil {
			return 0, 0, &domain.ValidationError{
				Message: "stop_price must have at most 2 decimal places",
			}
		}
	} else if req.StopPrice != nil {
		return 0, 0, &domain.ValidationError{
			Message: fmt.Sprintf("%s orders must not include stop_price", req.Type),
		}
	}

	return priceCents, stopCents, nil
}

// Get retrieves an order by ID.
func (s *OrderService) Get(orderID string) (*domain.Order, error) {
	return s.orders.Get(orderID)
}

// Cancel cancels a resting order and drops it from expiry tracking.
func (s *OrderService) Cancel(orderID string) (*domain.Order, error) {
	order, err := s.engine.Cancel(orderID)
	if err != nil {
		return nil, err
	}
	s.expiry.Remove(orderID)
	return order, nil
}

// List returns a paginated list of an account's orders with optional
// status filtering, newest first.
func (s *OrderService) List(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !s.portfolios.AccountExists(accountID) {
		return nil, 0, domain.ErrAccountNotFound
	}

	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: pending, open, partially_filled, filled, cancelled, rejected, expired", *status),
		}
	}

	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orders.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}
