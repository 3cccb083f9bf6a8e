package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/daisel10/kairos/internal/bus"
	"github.com/daisel10/kairos/internal/observability"
	"github.com/daisel10/kairos/internal/risk"
	"github.com/daisel10/kairos/internal/schema"
)

// PlaceOrderRequest is the external order submission shape.
type PlaceOrderRequest struct {
	Symbol    string
	Side      schema.TradeSide
	Quantity  decimal.Decimal
	Price     *decimal.Decimal
	RiskScore decimal.Decimal
}

// PlaceOrderResponse reports the intake outcome. OrderID is set whenever a
// candidate was created, including ones rejected before entering the channel.
type PlaceOrderResponse struct {
	Success bool               `json:"success"`
	OrderID string             `json:"order_id"`
	Message string             `json:"message"`
	Status  schema.OrderStatus `json:"status"`
}

// BalanceView is the external balance shape. Locked is always zero:
// validation reserves nothing ahead of execution.
type BalanceView struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

// Intake is the external order submission boundary. Submissions above the
// configured rate are rejected rather than queued.
type Intake struct {
	engine  *Engine
	risk    *risk.Engine
	sender  *bus.OrderSender
	limiter *rate.Limiter
}

// NewIntake wires the boundary. ordersPerSecond bounds submissions with a
// matching burst.
func NewIntake(e *Engine, riskEngine *risk.Engine, sender *bus.OrderSender, ordersPerSecond float64) *Intake {
	if ordersPerSecond <= 0 {
		ordersPerSecond = 1
	}
	burst := int(ordersPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Intake{
		engine:  e,
		risk:    riskEngine,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(ordersPerSecond), burst),
	}
}

// PlaceOrder validates the request shape, registers the candidate as pending
// and enqueues it. Enqueueing blocks while the channel is full.
func (i *Intake) PlaceOrder(ctx context.Context, req PlaceOrderRequest) PlaceOrderResponse {
	if !i.limiter.Allow() {
		return PlaceOrderResponse{
			Success: false,
			Message: "order rate exceeded",
			Status:  schema.StatusRejected,
		}
	}

	order := schema.NewInternalOrder(req.Symbol, req.Side, req.Quantity, req.Price, req.RiskScore)
	if err := order.Validate(); err != nil {
		return PlaceOrderResponse{
			Success: false,
			OrderID: order.ID.String(),
			Message: err.Error(),
			Status:  schema.StatusRejected,
		}
	}

	i.engine.Track(order)
	if err := i.sender.Send(ctx, order); err != nil {
		observability.Log().Warn("order intake send failed",
			observability.F("order_id", order.ID),
			observability.F("error", err))
		return PlaceOrderResponse{
			Success: false,
			OrderID: order.ID.String(),
			Message: err.Error(),
			Status:  schema.StatusCancelled,
		}
	}

	return PlaceOrderResponse{
		Success: true,
		OrderID: order.ID.String(),
		Message: "order accepted",
		Status:  schema.StatusPending,
	}
}

// Balance reports the current ledger position.
func (i *Intake) Balance() BalanceView {
	available := i.risk.Balance()
	return BalanceView{
		Available: available,
		Locked:    decimal.Zero,
		Total:     available,
	}
}

// Close releases the intake's producer handle on the order channel.
func (i *Intake) Close() {
	i.sender.Close()
}
