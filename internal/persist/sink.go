package persist

import (
	"context"

	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/observability"
	"github.com/daisel10/kairos/internal/schema"
	"github.com/daisel10/kairos/lib/async"
)

// TickWriter stores one market tick.
type TickWriter interface {
	InsertTick(ctx context.Context, tick schema.MarketTick) error
}

// TickWriterFunc adapts a function to the TickWriter interface.
type TickWriterFunc func(ctx context.Context, tick schema.MarketTick) error

// InsertTick implements TickWriter.
func (f TickWriterFunc) InsertTick(ctx context.Context, tick schema.MarketTick) error {
	return f(ctx, tick)
}

// OrderWriter stores one order record.
type OrderWriter interface {
	UpsertOrder(ctx context.Context, order schema.Order, venueRef string) error
}

// Sink drains the market-data bus into the configured writers. Writes run on
// a bounded pool; a full pool or failing store drops the write with a log
// line and the pipeline moves on.
type Sink struct {
	writers []TickWriter
	orders  OrderWriter
	pool    *async.Pool
}

// NewSink builds a sink over the given writers. orders may be nil when no
// order store is configured.
func NewSink(pool *async.Pool, orders OrderWriter, writers ...TickWriter) *Sink {
	return &Sink{writers: writers, orders: orders, pool: pool}
}

// Run subscribes to the bus and persists ticks until ctx is cancelled or the
// bus closes.
func (s *Sink) Run(ctx context.Context, b *bus.MarketDataBus) error {
	id, ticks, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer b.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			s.persistTick(tick)
		}
	}
}

// RecordOrder persists an order record asynchronously. Used by the engine
// after each status transition.
func (s *Sink) RecordOrder(order schema.Order, venueRef string) {
	if s.orders == nil {
		return
	}
	err := s.pool.Submit(context.Background(), func(ctx context.Context) error {
		return s.orders.UpsertOrder(ctx, order, venueRef)
	})
	if err != nil {
		observability.Log().Warn("order record dropped",
			observability.F("order_id", order.ID),
			observability.F("error", err))
	}
}

func (s *Sink) persistTick(tick schema.MarketTick) {
	for _, w := range s.writers {
		writer := w
		err := s.pool.Submit(context.Background(), func(ctx context.Context) error {
			return writer.InsertTick(ctx, tick)
		})
		if err != nil {
			observability.Log().Warn("tick write dropped",
				observability.F("tick_id", tick.ID),
				observability.F("symbol", tick.Symbol),
				observability.F("error", err))
		}
	}
}
