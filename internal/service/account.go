package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/store"
)

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	tickerRegex    = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// OpenAccountRequest represents the input for account registration.
type OpenAccountRequest struct {
	AccountID       string
	InitialCash     float64
	InitialHoldings []HoldingInput
}

// HoldingInput represents a single seeded holding in a registration
// request. AvgCost is the acquisition price carried into the position.
type HoldingInput struct {
	Ticker   string
	Quantity int64
	AvgCost  float64
}

// PositionView is a single position in the portfolio response.
type PositionView struct {
	Ticker       string
	Quantity     int64
	AvgCost      int64
	MarketPrice  *int64 // nil when the instrument has never ticked
	MarketValue  int64
	CostBasis    int64
	UnrealizedPL int64
}

// PortfolioView represents the response for the portfolio endpoint.
type PortfolioView struct {
	AccountID    string
	PortfolioID  string
	CashBalance  int64
	Positions    []PositionView
	MarketValue  int64
	TotalCost    int64
	UnrealizedPL int64
	TotalValue   int64 // cash + market value
	AsOf         time.Time
}

// AccountService handles account registration and portfolio queries.
type AccountService struct {
	portfolios *store.PortfolioStore
	quotes     *store.QuoteStore
	catalog    *domain.SecurityCatalog
}

// NewAccountService creates a new AccountService.
func NewAccountService(portfolios *store.PortfolioStore, quotes *store.QuoteStore, catalog *domain.SecurityCatalog) *AccountService {
	return &AccountService{
		portfolios: portfolios,
		quotes:     quotes,
		catalog:    catalog,
	}
}

// Open validates the request and creates an account with its portfolio.
func (s *AccountService) Open(req OpenAccountRequest) (*domain.Account, *domain.Portfolio, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	if req.InitialCash < 0 {
		return nil, nil, &domain.ValidationError{
			Message: "initial_cash must be >= 0",
		}
	}
	cashCents, err := domain.ToCents(req.InitialCash)
	if err != nil {
		return nil, nil, &domain.ValidationError{
			Message: "initial_cash must have at most 2 decimal places",
		}
	}

	seen := make(map[string]bool)
	for _, h := range req.InitialHoldings {
		if !tickerRegex.MatchString(h.Ticker) {
			return nil, nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding ticker must match ^[A-Z]{1,10}$, got %q", h.Ticker),
			}
		}
		if _, err := s.catalog.Get(h.Ticker); err != nil {
			return nil, nil, err
		}
		if h.Quantity <= 0 {
			return nil, nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding quantity must be > 0 for ticker %s", h.Ticker),
			}
		}
		if h.AvgCost <= 0 {
			return nil, nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding avg_cost must be > 0 for ticker %s", h.Ticker),
			}
		}
		if seen[h.Ticker] {
			return nil, nil, &domain.ValidationError{
				Message: fmt.Sprintf("duplicate ticker in initial_holdings: %s", h.Ticker),
			}
		}
		seen[h.Ticker] = true
	}

	positions := make(map[string]*domain.Position, len(req.InitialHoldings))
	for _, h := range req.InitialHoldings {
		costCents, err := domain.ToCents(h.AvgCost)
		if err != nil {
			return nil, nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding avg_cost must have at most 2 decimal places for ticker %s", h.Ticker),
			}
		}
		positions[h.Ticker] = &domain.Position{
			Ticker:   h.Ticker,
			Quantity: h.Quantity,
			AvgCost:  costCents,
		}
	}

	now := time.Now()
	pf := &domain.Portfolio{
		PortfolioID: uuid.NewString(),
		AccountID:   req.AccountID,
		CashBalance: cashCents,
		Positions:   positions,
		CreatedAt:   now,
	}
	pf.Revalue(s.quotes.LatestPrice)

	acct := &domain.Account{
		AccountID:   req.AccountID,
		PortfolioID: pf.PortfolioID,
		CreatedAt:   now,
	}

	if err := s.portfolios.CreateAccount(acct, pf); err != nil {
		return nil, nil, err
	}
	return acct, pf, nil
}

// Portfolio returns the account's portfolio valued at the latest known
// prices.
func (s *AccountService) Portfolio(accountID string) (*PortfolioView, error) {
	if !s.portfolios.AccountExists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	pf, err := s.portfolios.ByAccount(accountID)
	if err != nil {
		return nil, err
	}

	pf.Mu.Lock()
	defer pf.Mu.Unlock()
	pf.Revalue(s.quotes.LatestPrice)

	positions := make([]PositionView, 0, len(pf.Positions))
	for _, pos := range pf.Positions {
		view := PositionView{
			Ticker:    pos.Ticker,
			Quantity:  pos.Quantity,
			AvgCost:   pos.AvgCost,
			CostBasis: pos.CostBasis(),
		}
		if px, ok := s.quotes.LatestPrice(pos.Ticker); ok {
			view.MarketPrice = &px
			view.MarketValue = pos.Quantity * px
		} else {
			// Never-ticked instruments are valued at cost.
			view.MarketValue = pos.CostBasis()
		}
		view.UnrealizedPL = view.MarketValue - view.CostBasis
		positions = append(positions, view)
	}

	return &PortfolioView{
		AccountID:    pf.AccountID,
		PortfolioID:  pf.PortfolioID,
		CashBalance:  pf.CashBalance,
		Positions:    positions,
		MarketValue:  pf.MarketValue,
		TotalCost:    pf.TotalCost,
		UnrealizedPL: pf.UnrealizedPL,
		TotalValue:   pf.CashBalance + pf.MarketValue,
		AsOf:         time.Now(),
	}, nil
}
