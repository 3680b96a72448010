package domain

import "sync"

// SecurityStatus is the trading status of an instrument.
type SecurityStatus string

const (
	SecurityStatusActive    SecurityStatus = "active"
	SecurityStatusSuspended SecurityStatus = "suspended"
	SecurityStatusDelisted  SecurityStatus = "delisted"
	SecurityStatusHalted    SecurityStatus = "halted"
)

// Security is one tradable instrument in the fixed catalog.
type Security struct {
	Ticker   string
	Name     string
	Currency string
	LotSize  int64 // minimum tradable quantity increment
	Status   SecurityStatus
}

// Tradable reports whether orders may be submitted for the security.
// Halted instruments still accept orders; they simply will not tick.
func (s *Security) Tradable() bool {
	return s.Status == SecurityStatusActive || s.Status == SecurityStatusHalted
}

// ValidLotQuantity reports whether qty is a positive multiple of the
// security's lot size.
func (s *Security) ValidLotQuantity(qty int64) bool {
	lot := s.LotSize
	if lot <= 0 {
		lot = 1
	}
	return qty > 0 && qty%lot == 0
}

// SecurityCatalog is the thread-safe fixed catalog of instruments,
// seeded once at startup.
type SecurityCatalog struct {
	mu         sync.RWMutex
	securities map[string]*Security
	tickers    []string // insertion order, for stable listings
}

// NewSecurityCatalog creates an empty catalog.
func NewSecurityCatalog() *SecurityCatalog {
	return &SecurityCatalog{
		securities: make(map[string]*Security),
	}
}

// Add registers a security. Later adds for the same ticker overwrite the
// earlier entry without changing listing order.
func (c *SecurityCatalog) Add(s *Security) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.securities[s.Ticker]; !ok {
		c.tickers = append(c.tickers, s.Ticker)
	}
	c.securities[s.Ticker] = s
}

// Get retrieves a security by ticker. It returns ErrSecurityNotFound if
// the ticker is not in the catalog.
func (c *SecurityCatalog) Get(ticker string) (*Security, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.securities[ticker]
	if !ok {
		return nil, ErrSecurityNotFound
	}
	return s, nil
}

// List returns all securities in listing order.
func (c *SecurityCatalog) List() []*Security {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Security, 0, len(c.tickers))
	for _, t := range c.tickers {
		out = append(out, c.securities[t])
	}
	return out
}
