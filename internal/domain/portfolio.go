package domain

import (
	"sync"
	"time"
)

// Account represents a registered participant on the terminal. Each
// account exclusively owns one portfolio.
type Account struct {
	AccountID   string
	PortfolioID string
	CreatedAt   time.Time
}

// Position is one portfolio's holding of one instrument.
//
// AvgCost is the quantity-weighted mean of all buy-side settlements
// contributing to the current quantity. Sell-side settlements only reduce
// Quantity; they never move AvgCost.
type Position struct {
	Ticker   string
	Quantity int64
	AvgCost  int64 // cents, > 0 once Quantity > 0
}

// CostBasis returns the total acquisition cost of the current holding.
func (p *Position) CostBasis() int64 {
	return p.Quantity * p.AvgCost
}

// AddShares increases the position and recomputes the average cost as
// ((old_qty×old_avg)+(qty×price)) / new_qty.
func (p *Position) AddShares(qty, price int64) {
	totalCost := p.Quantity*p.AvgCost + qty*price
	p.Quantity += qty
	p.AvgCost = totalCost / p.Quantity
}

// RemoveShares reduces the position by qty and returns the realized P&L
// (salePrice − AvgCost) × qty. The caller removes the position once its
// quantity reaches zero.
func (p *Position) RemoveShares(qty, salePrice int64) int64 {
	realized := (salePrice - p.AvgCost) * qty
	p.Quantity -= qty
	return realized
}

// Portfolio aggregates an account's positions plus cash.
//
// MarketValue, TotalCost, and UnrealizedPL are views over the positions:
// they are recomputed after every settlement that touches the portfolio
// and must never drift from the positions they summarize.
type Portfolio struct {
	PortfolioID string
	AccountID   string
	CashBalance int64                // cents
	Positions   map[string]*Position // ticker → position
	MarketValue int64
	TotalCost   int64
	UnrealizedPL int64
	CreatedAt   time.Time
	Mu          sync.Mutex // guards balances and positions during settlement
}

// Position returns the holding for ticker, or nil if the portfolio holds
// none. Callers must hold Mu.
func (pf *Portfolio) Position(ticker string) *Position {
	return pf.Positions[ticker]
}

// ApplyBuy debits cash and creates or increases the position for ticker.
// Callers must hold Mu and have verified CashBalance covers qty×price.
func (pf *Portfolio) ApplyBuy(ticker string, qty, price int64) {
	pf.CashBalance -= qty * price
	pos := pf.Positions[ticker]
	if pos == nil {
		pf.Positions[ticker] = &Position{Ticker: ticker, Quantity: qty, AvgCost: price}
		return
	}
	pos.AddShares(qty, price)
}

// ApplySell credits cash, reduces the position, and returns the realized
// P&L of the sale. The position is removed when it reaches zero quantity.
// Callers must hold Mu and have verified the position covers qty.
func (pf *Portfolio) ApplySell(ticker string, qty, price int64) int64 {
	pf.CashBalance += qty * price
	pos := pf.Positions[ticker]
	if pos == nil {
		return 0
	}
	realized := pos.RemoveShares(qty, price)
	if pos.Quantity <= 0 {
		delete(pf.Positions, ticker)
	}
	return realized
}

// Revalue recomputes the derived valuation fields from the current
// positions. priceOf returns the latest instrument price and whether one
// is known; positions without a known price are valued at cost.
// Callers must hold Mu.
func (pf *Portfolio) Revalue(priceOf func(ticker string) (int64, bool)) {
	var value, cost int64
	for _, pos := range pf.Positions {
		cost += pos.CostBasis()
		if px, ok := priceOf(pos.Ticker); ok {
			value += pos.Quantity * px
		} else {
			value += pos.CostBasis()
		}
	}
	pf.MarketValue = value
	pf.TotalCost = cost
	pf.UnrealizedPL = value - cost
}
