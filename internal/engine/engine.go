// Package engine runs the order pipeline: drain candidates, gate them
// through risk validation, hand survivors to the execution venue, and apply
// balance and risk effects once the venue acknowledges.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/exec"
	"github.com/daisel10/kairos/internal/observability"
	"github.com/daisel10/kairos/internal/risk"
	"github.com/daisel10/kairos/internal/schema"
)

// Recorder persists order status transitions. Recording must never block
// the loop; implementations hand off to their own workers.
type Recorder interface {
	RecordOrder(order schema.Order, venueRef string)
}

type noopRecorder struct{}

func (noopRecorder) RecordOrder(schema.Order, string) {}

// Engine consumes the order channel and owns the order status registry.
// Exactly one Run loop consumes the channel.
type Engine struct {
	orders   *bus.OrderChannel
	risk     *risk.Engine
	venue    exec.Venue
	recorder Recorder

	mu       sync.RWMutex
	statuses map[uuid.UUID]schema.Order

	approved metric.Int64Counter
	rejected metric.Int64Counter
	executed metric.Int64Counter
}

// New wires the engine. A nil recorder disables persistence.
func New(orders *bus.OrderChannel, riskEngine *risk.Engine, venue exec.Venue, recorder Recorder) *Engine {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	e := &Engine{
		orders:   orders,
		risk:     riskEngine,
		venue:    venue,
		recorder: recorder,
		statuses: make(map[uuid.UUID]schema.Order),
	}
	meter := otel.Meter("kairos.engine")
	e.approved, _ = meter.Int64Counter("engine.orders.approved",
		metric.WithDescription("Orders that passed risk validation"))
	e.rejected, _ = meter.Int64Counter("engine.orders.rejected",
		metric.WithDescription("Orders rejected by validation or the venue"))
	e.executed, _ = meter.Int64Counter("engine.orders.executed",
		metric.WithDescription("Orders acknowledged by the execution venue"))
	return e
}

// Run drains the order channel until it closes and empties or ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case order, ok := <-e.orders.Receive():
			if !ok {
				return nil
			}
			e.process(ctx, order)
		}
	}
}

func (e *Engine) process(ctx context.Context, order schema.InternalOrder) {
	log := observability.Log()

	if err := e.risk.ValidateOrder(order); err != nil {
		wrapped := risk.Violation(err)
		log.Info("order rejected",
			observability.F("order_id", order.ID),
			observability.F("symbol", order.Symbol),
			observability.F("reason", wrapped.Error()))
		e.rejected.Add(ctx, 1)
		e.transition(order, schema.StatusRejected, wrapped.Error(), "")
		return
	}

	e.approved.Add(ctx, 1)
	e.transition(order, schema.StatusApproved, "", "")

	venueRef, err := e.venue.PlaceOrder(ctx, order)
	if err != nil {
		log.Warn("venue rejected order",
			observability.F("order_id", order.ID),
			observability.F("venue", e.venue.Name()),
			observability.F("error", err))
		e.rejected.Add(ctx, 1)
		e.transition(order, schema.StatusRejected, err.Error(), "")
		return
	}

	// Effects land only after the venue acknowledges; validation reserved
	// nothing.
	e.risk.UpdateBalance(order.Value().Neg())
	e.risk.AddRisk(order.RiskScore)
	e.executed.Add(ctx, 1)
	e.transition(order, schema.StatusExecuted, "", venueRef)

	log.Info("order executed",
		observability.F("order_id", order.ID),
		observability.F("symbol", order.Symbol),
		observability.F("venue_ref", venueRef))
}

func (e *Engine) transition(order schema.InternalOrder, status schema.OrderStatus, reason, venueRef string) {
	record := schema.RecordOf(order, status)
	record.Reason = reason
	e.mu.Lock()
	e.statuses[order.ID] = record
	e.mu.Unlock()
	e.recorder.RecordOrder(record, venueRef)
}

// Track registers a candidate before it enters the channel so status queries
// see it as pending.
func (e *Engine) Track(order schema.InternalOrder) {
	e.transition(order, schema.StatusPending, "", "")
}

// Status reports the last recorded state of an order.
func (e *Engine) Status(id uuid.UUID) (schema.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	record, ok := e.statuses[id]
	return record, ok
}
