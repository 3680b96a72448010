package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/njorogedev/sokoni/internal/domain"
	"github.com/njorogedev/sokoni/internal/engine"
	"github.com/njorogedev/sokoni/internal/events"
	"github.com/njorogedev/sokoni/internal/store"
)

// nopDispatcher drops all events.
type nopDispatcher struct{}

func (nopDispatcher) Dispatch(...events.Event) {}

// testEnv bundles all dependencies needed for service tests.
type testEnv struct {
	orders     *store.OrderStore
	portfolios *store.PortfolioStore
	trades     *store.TradeStore
	quotes     *store.QuoteStore
	catalog    *domain.SecurityCatalog
	engine     *engine.Engine
	expiry     *engine.ExpiryManager
	orderSvc   *OrderService
	accountSvc *AccountService
	marketSvc  *MarketService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orders:     store.NewOrderStore(),
		portfolios: store.NewPortfolioStore(),
		trades:     store.NewTradeStore(),
		quotes:     store.NewQuoteStore(),
		catalog:    domain.NewSecurityCatalog(),
	}
	env.catalog.Add(&domain.Security{Ticker: "SCOM", Name: "Safaricom", Currency: "KES", LotSize: 100, Status: domain.SecurityStatusActive})
	env.catalog.Add(&domain.Security{Ticker: "KCB", Name: "KCB Group", Currency: "KES", LotSize: 1, Status: domain.SecurityStatusActive})
	env.catalog.Add(&domain.Security{Ticker: "EABL", Name: "East African Breweries", Currency: "KES", LotSize: 1, Status: domain.SecurityStatusSuspended})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	books := engine.NewBookManager()
	env.engine = engine.New(books, env.orders, env.portfolios, env.trades, env.quotes, nopDispatcher{}, logger)
	env.expiry = engine.NewExpiryManager(time.Second, books, nopDispatcher{})
	env.orderSvc = NewOrderService(env.engine, env.expiry, env.orders, env.portfolios, env.catalog)
	env.accountSvc = NewAccountService(env.portfolios, env.quotes, env.catalog)
	env.marketSvc = NewMarketService(env.engine, env.quotes, env.trades, env.catalog)
	return env
}

// openAccount is a helper that opens an account with cash and optional
// holdings.
func (env *testEnv) openAccount(t *testing.T, id string, cash float64, holdings []HoldingInput) {
	t.Helper()
	_, _, err := env.accountSvc.Open(OpenAccountRequest{
		AccountID:       id,
		InitialCash:     cash,
		InitialHoldings: holdings,
	})
	if err != nil {
		t.Fatalf("failed to open account %s: %v", id, err)
	}
}

func futureTime() *time.Time {
	t := time.Now().Add(24 * time.Hour)
	return &t
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestSubmit_LimitBuyRests(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 100000.00, nil)

	order, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer",
		Ticker:    "KCB",
		Side:      domain.OrderSideBuy,
		Type:      domain.OrderTypeLimit,
		Quantity:  100,
		Price:     floatPtr(45.50),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID == "" {
		t.Error("expected order to be assigned an ID")
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("expected open, got %s", order.Status)
	}
	if order.Price != 4550 {
		t.Errorf("expected price 4550 cents, got %d", order.Price)
	}
	if order.TimeInForce != domain.TimeInForceGTC {
		t.Errorf("expected default gtc, got %s", order.TimeInForce)
	}
}

func TestSubmit_CrossingOrdersExecute(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 100000.00, nil)
	env.openAccount(t, "seller", 0, []HoldingInput{{Ticker: "KCB", Quantity: 100, AvgCost: 40.00}})

	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 100, Price: floatPtr(50.00),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sell, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "seller", Ticker: "KCB", Side: domain.OrderSideSell,
		Type: domain.OrderTypeLimit, Quantity: 100, Price: floatPtr(48.00),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sell.Status != domain.OrderStatusFilled {
		t.Errorf("expected filled, got %s", sell.Status)
	}
	trades := env.trades.ByTicker("KCB")
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 5000 {
		t.Errorf("expected execution at resting price 5000, got %d", trades[0].Price)
	}
}

func TestSubmit_UnknownType(t *testing.T) {
	env := newTestEnv()
	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: "iceberg", Quantity: 100,
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmit_UnknownTicker(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 1000.00, nil)
	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "ZZZZ", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 100, Price: floatPtr(10.00),
	})
	if !errors.Is(err, domain.ErrSecurityNotFound) {
		t.Fatalf("expected ErrSecurityNotFound, got %v", err)
	}
}

func TestSubmit_SuspendedSecurity(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 1000.00, nil)
	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "EABL", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 100, Price: floatPtr(10.00),
	})
	if !errors.Is(err, domain.ErrSecurityNotTradable) {
		t.Fatalf("expected ErrSecurityNotTradable, got %v", err)
	}
}

func TestSubmit_LotSizeViolation(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 100000.00, nil)
	// SCOM trades in lots of 100.
	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "SCOM", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 150, Price: floatPtr(10.00),
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for lot size, got %v", err)
	}
}

func TestSubmit_PriceRules(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 100000.00, nil)

	cases := []struct {
		name string
		req  SubmitOrderRequest
	}{
		{"market with price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeMarket, Quantity: 10, Price: floatPtr(10.00),
		}},
		{"limit without price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeLimit, Quantity: 10,
		}},
		{"limit with zero price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(0),
		}},
		{"limit with excess precision", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.123),
		}},
		{"stop without stop price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeStop, Quantity: 10,
		}},
		{"stop with price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeStop, Quantity: 10, Price: floatPtr(10.00), StopPrice: floatPtr(11.00),
		}},
		{"stop_limit without price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeStopLimit, Quantity: 10, StopPrice: floatPtr(11.00),
		}},
		{"limit with stop price", SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00), StopPrice: floatPtr(9.00),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.orderSvc.Submit(tc.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSubmit_TimeInForceRules(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 100000.00, nil)

	// Day without expires_at.
	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00),
		TimeInForce: domain.TimeInForceDay,
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for day without expires_at, got %v", err)
	}

	// Past expires_at.
	past := time.Now().Add(-time.Hour)
	_, err = env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00),
		TimeInForce: domain.TimeInForceDay, ExpiresAt: &past,
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for past expires_at, got %v", err)
	}

	// Valid day order enters expiry tracking.
	order, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00),
		TimeInForce: domain.TimeInForceDay, ExpiresAt: futureTime(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("expected open, got %s", order.Status)
	}
	if env.expiry.ActiveOrderCount() != 1 {
		t.Errorf("expected 1 tracked order, got %d", env.expiry.ActiveOrderCount())
	}
}

func TestSubmit_UnknownAccount(t *testing.T) {
	env := newTestEnv()
	_, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "ghost", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00),
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCancel_RemovesFromExpiry(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 100000.00, nil)

	order, err := env.orderSvc.Submit(SubmitOrderRequest{
		AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00),
		TimeInForce: domain.TimeInForceDay, ExpiresAt: futureTime(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := env.orderSvc.Cancel(order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if env.expiry.ActiveOrderCount() != 0 {
		t.Errorf("expected expiry tracking emptied, got %d", env.expiry.ActiveOrderCount())
	}
}

func TestList_FilterAndPaginate(t *testing.T) {
	env := newTestEnv()
	env.openAccount(t, "buyer", 1000000.00, nil)

	for i := 0; i < 5; i++ {
		_, err := env.orderSvc.Submit(SubmitOrderRequest{
			AccountID: "buyer", Ticker: "KCB", Side: domain.OrderSideBuy,
			Type: domain.OrderTypeLimit, Quantity: 10, Price: floatPtr(10.00),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	orders, total, err := env.orderSvc.List("buyer", nil, 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(orders) != 3 {
		t.Errorf("expected page of 3, got %d", len(orders))
	}

	open := domain.OrderStatusOpen
	orders, total, err = env.orderSvc.List("buyer", &open, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 || len(orders) != 5 {
		t.Errorf("expected all 5 open orders, got total=%d len=%d", total, len(orders))
	}

	bad := domain.OrderStatus("teleported")
	_, _, err = env.orderSvc.List("buyer", &bad, 1, 10)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}

	_, _, err = env.orderSvc.List("ghost", nil, 1, 10)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
