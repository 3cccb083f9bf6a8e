// Package strategy hosts the bundled signal generators. Strategies consume
// the market-data bus and emit order candidates; order quality is not their
// contract, the risk engine gates everything they produce.
package strategy

import (
	"context"

	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/observability"
	"github.com/daisel10/kairos/internal/schema"
)

// Strategy turns a stream of ticks into order candidates. OnTick must be
// safe for calls from a single goroutine; the runner never calls it
// concurrently.
type Strategy interface {
	Name() string
	OnTick(tick schema.MarketTick) []schema.InternalOrder
}

// Runner drives one strategy from a bus subscription into an order sender.
type Runner struct {
	strategy Strategy
	bus      *bus.MarketDataBus
	sender   *bus.OrderSender
}

// NewRunner wires a strategy between the bus and the order channel.
func NewRunner(s Strategy, b *bus.MarketDataBus, sender *bus.OrderSender) *Runner {
	return &Runner{strategy: s, bus: b, sender: sender}
}

// Run consumes ticks until ctx is cancelled or the bus closes. The sender
// handle is closed on exit so the order channel can wind down.
func (r *Runner) Run(ctx context.Context) error {
	defer r.sender.Close()

	id, ticks, err := r.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer r.bus.Unsubscribe(id)

	log := observability.Log()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			for _, order := range r.strategy.OnTick(tick) {
				if err := r.sender.Send(ctx, order); err != nil {
					return err
				}
				log.Info("strategy emitted order",
					observability.F("strategy", r.strategy.Name()),
					observability.F("order_id", order.ID),
					observability.F("symbol", order.Symbol),
					observability.F("side", order.Side))
			}
		}
	}
}
