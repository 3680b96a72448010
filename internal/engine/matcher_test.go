package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/njorogedev/sokoni/internal/domain"
)

var seqCounter int

// bookOrder creates an open order resting on the book, with CreatedAt
// spaced so submission order equals time priority.
func bookOrder(side domain.OrderSide, typ domain.OrderType, qty, price int64) *domain.Order {
	seqCounter++
	o := &domain.Order{
		ID:        fmt.Sprintf("ord-%03d", seqCounter),
		AccountID: fmt.Sprintf("acct-%03d", seqCounter),
		Ticker:    "SCOM",
		Side:      side,
		Type:      typ,
		Quantity:  qty,
		Price:     price,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).Add(time.Duration(seqCounter) * time.Second),
	}
	return o
}

func TestProposeTrades_NoCross(t *testing.T) {
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 50, 4500)
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 50, 5000)

	proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell})
	if len(proposals) != 0 {
		t.Fatalf("buy@4500 vs sell@5000 must not trade, got %d proposals", len(proposals))
	}
}

func TestProposeTrades_CrossAtEarlierOrdersPrice(t *testing.T) {
	// Buy 100@5000 submitted first, then sell 100@4800: one trade at
	// 5000, the earlier order's price.
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 100, 5000)
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)

	proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell})
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	p := proposals[0]
	if p.Price != 5000 {
		t.Errorf("price = %d, want 5000 (earlier order)", p.Price)
	}
	if p.Quantity != 100 {
		t.Errorf("quantity = %d, want 100", p.Quantity)
	}
	if p.BuyOrderID != buy.ID || p.SellOrderID != sell.ID {
		t.Errorf("proposal references wrong orders: %+v", p)
	}
}

func TestProposeTrades_SellFirstTakesSellPrice(t *testing.T) {
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 100, 5000)

	proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell})
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	if proposals[0].Price != 4800 {
		t.Errorf("price = %d, want 4800 (earlier order)", proposals[0].Price)
	}
}

func TestProposeTrades_MarketTakesLimitPrice(t *testing.T) {
	tests := []struct {
		name      string
		marketBuy bool
		want      int64
	}{
		{"market buy vs limit sell", true, 4800},
		{"limit buy vs market sell", false, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buy, sell *domain.Order
			if tt.marketBuy {
				buy = bookOrder(domain.OrderSideBuy, domain.OrderTypeMarket, 100, 0)
				sell = bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)
			} else {
				buy = bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 100, 5000)
				sell = bookOrder(domain.OrderSideSell, domain.OrderTypeMarket, 100, 0)
			}
			proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell})
			if len(proposals) != 1 {
				t.Fatalf("expected 1 proposal, got %d", len(proposals))
			}
			if proposals[0].Price != tt.want {
				t.Errorf("price = %d, want %d", proposals[0].Price, tt.want)
			}
		})
	}
}

func TestProposeTrades_TwoMarketOrdersRefuse(t *testing.T) {
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeMarket, 100, 0)
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeMarket, 100, 0)

	proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell})
	if len(proposals) != 0 {
		t.Fatalf("two market orders have no reference price and must not trade")
	}
}

func TestProposeTrades_MarketBuySkipsMarketSellForLimitSell(t *testing.T) {
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeMarket, 100, 0)
	marketSell := bookOrder(domain.OrderSideSell, domain.OrderTypeMarket, 100, 0)
	limitSell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)

	proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{marketSell, limitSell})
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal against the limit sell, got %d", len(proposals))
	}
	if proposals[0].SellOrderID != limitSell.ID {
		t.Errorf("matched %s, want the limit sell", proposals[0].SellOrderID)
	}
	if proposals[0].Price != 4800 {
		t.Errorf("price = %d, want 4800", proposals[0].Price)
	}
}

func TestProposeTrades_PartialFillCascades(t *testing.T) {
	// One big buy sweeps two sells; the second sell is larger than the
	// buy's remainder.
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 150, 5000)
	sell1 := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)
	sell2 := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4900)

	proposals := ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell1, sell2})
	if len(proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(proposals))
	}
	if proposals[0].Quantity != 100 || proposals[1].Quantity != 50 {
		t.Errorf("quantities = %d, %d; want 100, 50", proposals[0].Quantity, proposals[1].Quantity)
	}
	// Both priced at the buy side: the buy was created first.
	for i, p := range proposals {
		if p.Price != 5000 {
			t.Errorf("proposal %d price = %d, want 5000", i, p.Price)
		}
	}
}

func TestProposeTrades_TimePriorityAtEqualPrice(t *testing.T) {
	early := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 100, 5000)
	late := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 100, 5000)
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)

	// Buys arrive in priority order: the earlier one fills first.
	proposals := ProposeTrades([]*domain.Order{early, late}, []*domain.Order{sell})
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	if proposals[0].BuyOrderID != early.ID {
		t.Errorf("filled %s first, want the earlier buy %s", proposals[0].BuyOrderID, early.ID)
	}
}

func TestProposeTrades_DoesNotMutateOrders(t *testing.T) {
	buy := bookOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 100, 5000)
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)
	ProposeTrades([]*domain.Order{buy}, []*domain.Order{sell})

	if buy.FilledQuantity != 0 || sell.FilledQuantity != 0 {
		t.Error("matching must not mutate orders")
	}
	if buy.Status != domain.OrderStatusOpen || sell.Status != domain.OrderStatusOpen {
		t.Error("matching must not change order status")
	}
}

func TestProposeTrades_SkipsUntriggeredStops(t *testing.T) {
	stop := bookOrder(domain.OrderSideBuy, domain.OrderTypeStop, 100, 0)
	stop.StopPrice = 5100
	sell := bookOrder(domain.OrderSideSell, domain.OrderTypeLimit, 100, 4800)

	proposals := ProposeTrades([]*domain.Order{stop}, []*domain.Order{sell})
	if len(proposals) != 0 {
		t.Fatal("untriggered stop orders must not match")
	}
}
