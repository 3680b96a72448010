package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrPortfolioNotFound    = errors.New("portfolio_not_found")
	ErrSecurityNotFound     = errors.New("security_not_found")
	ErrSecurityNotTradable  = errors.New("security_not_tradable")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrOrderNotCancellable  = errors.New("order_not_cancellable")
	ErrInvalidTransition    = errors.New("invalid_order_transition")
	ErrInvalidFill          = errors.New("invalid_fill")
	ErrPositionNotFound     = errors.New("position_not_found")
	ErrQuoteNotFound        = errors.New("quote_not_found")
)

// Settlement-time rejection reasons stored on the order and carried on
// order_rejected events.
const (
	RejectReasonInsufficientCash     = "insufficient_cash"
	RejectReasonInsufficientHoldings = "insufficient_holdings"
)

// ValidationError represents a request validation failure. Submissions
// failing validation return it synchronously and never persist an order.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
