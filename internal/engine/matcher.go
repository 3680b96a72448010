package engine

import "github.com/njorogedev/sokoni/internal/domain"

// TradeProposal is one trade the matching algorithm wants executed:
// (buy order, sell order, quantity, price). Proposals reference orders by
// ID only; the settlement coordinator re-resolves and re-validates them.
type TradeProposal struct {
	BuyOrderID  string
	SellOrderID string
	Quantity    int64
	Price       int64
}

// ProposeTrades is the matching algorithm: a pure decision function over
// the resting orders of one instrument. buys and sells must be in
// price/time priority order (best first), as produced by the book
// snapshots. It mutates nothing — fill progress within the pass is
// tracked locally.
//
// Crossing rule: two orders cross if either side is a market order, or
// both are limit-priced and buy.Price >= sell.Price.
//
// Execution price rule: market against limit takes the limit side's
// price; limit against limit takes the earlier-created order's price;
// market against market is refused outright — there is no reference
// price, so the pair is skipped rather than priced by guesswork.
func ProposeTrades(buys, sells []*domain.Order) []TradeProposal {
	remaining := make(map[string]int64, len(buys)+len(sells))
	for _, o := range buys {
		remaining[o.ID] = o.RemainingQuantity()
	}
	for _, o := range sells {
		remaining[o.ID] = o.RemainingQuantity()
	}

	var proposals []TradeProposal

	for _, buy := range buys {
		if !buy.Matchable() {
			continue
		}
		for _, sell := range sells {
			if remaining[buy.ID] == 0 {
				break
			}
			if !sell.Matchable() || remaining[sell.ID] == 0 {
				continue
			}

			buyMarket := buy.Type == domain.OrderTypeMarket
			sellMarket := sell.Type == domain.OrderTypeMarket

			if buyMarket && sellMarket {
				// No reference price; try the next sell, which may be
				// limit-priced.
				continue
			}
			if !buyMarket && !sellMarket && buy.Price < sell.Price {
				// Sells are sorted by ascending price: nothing further
				// down the side can cross this buy either.
				break
			}

			var price int64
			switch {
			case buyMarket:
				price = sell.Price
			case sellMarket:
				price = buy.Price
			case buy.CreatedAt.Before(sell.CreatedAt):
				price = buy.Price
			default:
				price = sell.Price
			}

			qty := remaining[buy.ID]
			if remaining[sell.ID] < qty {
				qty = remaining[sell.ID]
			}

			remaining[buy.ID] -= qty
			remaining[sell.ID] -= qty

			proposals = append(proposals, TradeProposal{
				BuyOrderID:  buy.ID,
				SellOrderID: sell.ID,
				Quantity:    qty,
				Price:       price,
			})
		}
	}

	return proposals
}
