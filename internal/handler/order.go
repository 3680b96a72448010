package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	AccountID   string   `json:"account_id"`
	Ticker      string   `json:"ticker"`
	Side        string   `json:"side"`
	Type        string   `json:"type"`
	Quantity    int64    `json:"quantity"`
	Price       *float64 `json:"price"`
	StopPrice   *float64 `json:"stop_price"`
	TimeInForce string   `json:"time_in_force"`
	ExpiresAt   *string  `json:"expires_at"`
}

// orderResponse is the JSON shape of one order. Nullable fields use
// pointers; price fields are decimal currency amounts.
type orderResponse struct {
	OrderID           string   `json:"order_id"`
	AccountID         string   `json:"account_id"`
	Ticker            string   `json:"ticker"`
	Side              string   `json:"side"`
	Type              string   `json:"type"`
	Quantity          int64    `json:"quantity"`
	Price             *float64 `json:"price"`
	StopPrice         *float64 `json:"stop_price"`
	TimeInForce       string   `json:"time_in_force"`
	FilledQuantity    int64    `json:"filled_quantity"`
	RemainingQuantity int64    `json:"remaining_quantity"`
	AvgFillPrice      *float64 `json:"avg_fill_price"`
	Status            string   `json:"status"`
	RejectReason      *string  `json:"reject_reason"`
	CreatedAt         string   `json:"created_at"`
	ExpiresAt         *string  `json:"expires_at"`
	TriggeredAt       *string  `json:"triggered_at"`
	FilledAt          *string  `json:"filled_at"`
	CancelledAt       *string  `json:"cancelled_at"`
	RejectedAt        *string  `json:"rejected_at"`
	ExpiredAt         *string  `json:"expired_at"`
}

// Submit handles POST /orders.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "expires_at must be a valid RFC 3339 timestamp")
			return
		}
		expiresAt = &t
	}

	order, err := h.orderSvc.Submit(service.SubmitOrderRequest{
		AccountID:   req.AccountID,
		Ticker:      req.Ticker,
		Side:        domain.OrderSide(req.Side),
		Type:        domain.OrderType(req.Type),
		Quantity:    req.Quantity,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
		TimeInForce: domain.TimeInForce(req.TimeInForce),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.Get(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.Cancel(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:           o.ID,
		AccountID:         o.AccountID,
		Ticker:            o.Ticker,
		Side:              string(o.Side),
		Type:              string(o.Type),
		Quantity:          o.Quantity,
		TimeInForce:       string(o.TimeInForce),
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity(),
		Status:            string(o.Status),
		CreatedAt:         formatTime(o.CreatedAt),
	}
	if o.Price > 0 {
		p := domain.FromCents(o.Price)
		resp.Price = &p
	}
	if o.StopPrice > 0 {
		p := domain.FromCents(o.StopPrice)
		resp.StopPrice = &p
	}
	if o.FilledQuantity > 0 {
		p := domain.FromCents(o.AvgFillPrice)
		resp.AvgFillPrice = &p
	}
	if o.RejectReason != "" {
		s := o.RejectReason
		resp.RejectReason = &s
	}
	resp.ExpiresAt = formatTimePtr(o.ExpiresAt)
	resp.TriggeredAt = formatTimePtr(o.TriggeredAt)
	resp.FilledAt = formatTimePtr(o.FilledAt)
	resp.CancelledAt = formatTimePtr(o.CancelledAt)
	resp.RejectedAt = formatTimePtr(o.RejectedAt)
	resp.ExpiredAt = formatTimePtr(o.ExpiredAt)
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrSecurityNotFound):
		WriteError(w, http.StatusNotFound, "security_not_found", err.Error())
	case errors.Is(err, domain.ErrSecurityNotTradable):
		WriteError(w, http.StatusConflict, "security_not_tradable", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotCancellable):
		WriteError(w, http.StatusConflict, "order_not_cancellable", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
