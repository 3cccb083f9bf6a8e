package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/errs"
)

// TradeSide identifies the direction of an order.
type TradeSide string

const (
	// SideBuy marks a buy order.
	SideBuy TradeSide = "buy"
	// SideSell marks a sell order.
	SideSell TradeSide = "sell"
)

// OrderType distinguishes market and limit orders.
type OrderType string

const (
	// OrderTypeMarket executes at the best available price.
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit executes at the limit price or better.
	OrderTypeLimit OrderType = "limit"
)

// OrderStatus tracks an order through the pipeline.
type OrderStatus string

const (
	// StatusPending marks an order accepted into the channel, not yet validated.
	StatusPending OrderStatus = "pending"
	// StatusApproved marks an order that passed risk validation.
	StatusApproved OrderStatus = "approved"
	// StatusRejected marks an order dropped by risk validation or the venue.
	StatusRejected OrderStatus = "rejected"
	// StatusExecuted marks an order acknowledged by the execution venue.
	StatusExecuted OrderStatus = "executed"
	// StatusCancelled marks an order cancelled before execution.
	StatusCancelled OrderStatus = "cancelled"
)

// InternalOrder is the candidate order a strategy submits for risk gating.
// Price is nil for market orders. Immutable once created; consumed exactly
// once by the engine loop.
type InternalOrder struct {
	ID        uuid.UUID
	Symbol    string
	Side      TradeSide
	Quantity  decimal.Decimal
	Price     *decimal.Decimal
	RiskScore decimal.Decimal
}

// NewInternalOrder constructs an order candidate with a fresh identifier.
func NewInternalOrder(symbol string, side TradeSide, quantity decimal.Decimal, price *decimal.Decimal, riskScore decimal.Decimal) InternalOrder {
	return InternalOrder{
		ID:        uuid.New(),
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		RiskScore: riskScore,
	}
}

// Value returns quantity × limit price, or zero for market orders.
func (o InternalOrder) Value() decimal.Decimal {
	if o.Price == nil {
		return decimal.Zero
	}
	return o.Quantity.Mul(*o.Price)
}

// Type derives the order type from the presence of a limit price.
func (o InternalOrder) Type() OrderType {
	if o.Price == nil {
		return OrderTypeMarket
	}
	return OrderTypeLimit
}

// Validate checks the candidate for structural soundness.
func (o InternalOrder) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return errs.New("schema/order", errs.CodeInvalid,
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol),
			errs.WithMessage("symbol required"))
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return errs.New("schema/order", errs.CodeInvalid, errs.WithMessage("side must be buy or sell"))
	}
	if !o.Quantity.IsPositive() {
		return errs.New("schema/order", errs.CodeInvalid, errs.WithMessage("quantity must be positive"))
	}
	if o.Price != nil && !o.Price.IsPositive() {
		return errs.New("schema/order", errs.CodeInvalid, errs.WithMessage("limit price must be positive"))
	}
	if o.RiskScore.IsNegative() {
		return errs.New("schema/order", errs.CodeInvalid, errs.WithMessage("risk score must be non-negative"))
	}
	return nil
}

// Order is the externally visible order record kept by the engine for the
// intake and status-query boundaries.
type Order struct {
	ID        uuid.UUID        `json:"id"`
	Symbol    string           `json:"symbol"`
	Side      TradeSide        `json:"side"`
	Type      OrderType        `json:"order_type"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Status    OrderStatus      `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// RecordOf builds the external record for an internal candidate.
func RecordOf(o InternalOrder, status OrderStatus) Order {
	return Order{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Type:      o.Type(),
		Quantity:  o.Quantity,
		Price:     o.Price,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}
