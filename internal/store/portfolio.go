package store

import (
	"sync"

	"github.com/njorogedev/sokoni/internal/domain"
)

// PortfolioStore is the authoritative position/portfolio ledger. Portfolios
// are indexed by portfolio ID and by owning account ID (one portfolio per
// account).
type PortfolioStore struct {
	mu         sync.RWMutex
	accounts   map[string]*domain.Account
	portfolios map[string]*domain.Portfolio // portfolio_id → portfolio
	byAccount  map[string]*domain.Portfolio // account_id → portfolio
}

// NewPortfolioStore creates an empty PortfolioStore.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		accounts:   make(map[string]*domain.Account),
		portfolios: make(map[string]*domain.Portfolio),
		byAccount:  make(map[string]*domain.Portfolio),
	}
}

// CreateAccount registers an account together with its portfolio. It
// returns domain.ErrAccountAlreadyExists if the account ID is taken.
func (s *PortfolioStore) CreateAccount(acct *domain.Account, pf *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.AccountID]; exists {
		return domain.ErrAccountAlreadyExists
	}
	s.accounts[acct.AccountID] = acct
	s.portfolios[pf.PortfolioID] = pf
	s.byAccount[acct.AccountID] = pf
	return nil
}

// Account retrieves an account by ID. It returns domain.ErrAccountNotFound
// if the account does not exist.
func (s *PortfolioStore) Account(id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

// AccountExists reports whether an account with the given ID exists.
func (s *PortfolioStore) AccountExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[id]
	return ok
}

// Get retrieves a portfolio by portfolio ID.
func (s *PortfolioStore) Get(id string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	return p, nil
}

// ByAccount retrieves the portfolio owned by the given account.
func (s *PortfolioStore) ByAccount(accountID string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byAccount[accountID]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	return p, nil
}
