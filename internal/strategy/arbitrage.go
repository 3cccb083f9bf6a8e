package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/internal/schema"
)

// Arbitrage watches the last trade price per venue and emits a buy on the
// cheaper venue when the cross-venue spread ratio exceeds the threshold.
type Arbitrage struct {
	spread   decimal.Decimal
	quantity decimal.Decimal

	// symbol -> venue -> last price. Accessed from the runner goroutine only.
	last map[string]map[schema.Exchange]decimal.Decimal
}

// NewArbitrage builds the detector. spread is a ratio, e.g. 0.002 for 0.2%.
func NewArbitrage(spread, quantity decimal.Decimal) *Arbitrage {
	return &Arbitrage{
		spread:   spread,
		quantity: quantity,
		last:     make(map[string]map[schema.Exchange]decimal.Decimal),
	}
}

// Name implements Strategy.
func (a *Arbitrage) Name() string { return "arbitrage" }

// OnTick implements Strategy.
func (a *Arbitrage) OnTick(tick schema.MarketTick) []schema.InternalOrder {
	venues := a.last[tick.Symbol]
	if venues == nil {
		venues = make(map[schema.Exchange]decimal.Decimal)
		a.last[tick.Symbol] = venues
	}
	venues[tick.Exchange] = tick.Price
	if len(venues) < 2 {
		return nil
	}

	low, high := tick.Price, tick.Price
	for _, price := range venues {
		if price.LessThan(low) {
			low = price
		}
		if price.GreaterThan(high) {
			high = price
		}
	}

	ratio := high.Sub(low).Div(low)
	if ratio.LessThanOrEqual(a.spread) {
		return nil
	}

	// Consume the snapshot so one divergence produces one order.
	delete(a.last, tick.Symbol)

	price := low
	order := schema.NewInternalOrder(tick.Symbol, schema.SideBuy, a.quantity, &price,
		a.quantity.Mul(low).Mul(ratio))
	return []schema.InternalOrder{order}
}

var _ Strategy = (*Arbitrage)(nil)
