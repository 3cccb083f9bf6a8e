// Package risk implements the order gatekeeper: lock-free balance and daily
// risk accounting plus the validation every order must pass before it may
// proceed to execution.
package risk

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/errs"
	"github.com/daisel10/kairos/internal/numeric"
	"github.com/daisel10/kairos/internal/schema"
)

// InsufficientBalanceError rejects an order whose value exceeds the current
// account balance.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s", e.Required, e.Available)
}

// RiskLimitExceededError rejects an order whose risk score would push the
// daily accumulator past the configured ceiling.
type RiskLimitExceededError struct {
	CurrentRisk decimal.Decimal
	OrderRisk   decimal.Decimal
	MaxRisk     decimal.Decimal
}

func (e *RiskLimitExceededError) Error() string {
	return fmt.Sprintf("risk limit exceeded: daily risk %s, order risk %s, limit %s",
		e.CurrentRisk, e.OrderRisk, e.MaxRisk)
}

// Engine holds the process-wide economic ledger. Both counters are plain
// atomic integers in minor units; there is no transaction spanning balance
// and risk, so readers may observe one updated without the other. Construct
// exactly one Engine per ledger and share it by reference.
type Engine struct {
	balance      atomic.Int64
	dailyRisk    atomic.Int64
	maxDailyRisk int64
}

// NewEngine seeds the ledger. maxDailyRisk is fixed for the engine's lifetime.
func NewEngine(initialBalance, maxDailyRisk decimal.Decimal) *Engine {
	e := &Engine{maxDailyRisk: numeric.ToMinorUnits(maxDailyRisk)}
	e.balance.Store(numeric.ToMinorUnits(initialBalance))
	return e
}

// ValidateOrder checks the candidate against balance and the daily risk
// budget. Validation has no side effect: it reserves nothing, so two
// concurrent validations can both pass against the same funds. That race is
// inherited from the intended design and deliberately left in place.
func (e *Engine) ValidateOrder(order schema.InternalOrder) error {
	available := numeric.FromMinorUnits(e.balance.Load())
	value := order.Value()
	if value.GreaterThan(available) {
		return &InsufficientBalanceError{Required: value, Available: available}
	}

	current := numeric.FromMinorUnits(e.dailyRisk.Load())
	limit := numeric.FromMinorUnits(e.maxDailyRisk)
	if current.Add(order.RiskScore).GreaterThan(limit) {
		return &RiskLimitExceededError{CurrentRisk: current, OrderRisk: order.RiskScore, MaxRisk: limit}
	}
	return nil
}

// UpdateBalance applies a signed delta: positive on credit, negative on
// debit. Lock-free; never blocks, never fails.
func (e *Engine) UpdateBalance(delta decimal.Decimal) {
	e.balance.Add(numeric.ToMinorUnits(delta))
}

// AddRisk consumes part of the daily risk budget.
func (e *Engine) AddRisk(amount decimal.Decimal) {
	e.dailyRisk.Add(numeric.ToMinorUnits(amount))
}

// ResetDailyRisk zeroes the daily accumulator. Intended to be called by a
// single external scheduler once per trading day; a reset racing a
// concurrent AddRisk can lose that increment.
func (e *Engine) ResetDailyRisk() {
	e.dailyRisk.Store(0)
}

// Balance returns the current balance as a decimal amount.
func (e *Engine) Balance() decimal.Decimal {
	return numeric.FromMinorUnits(e.balance.Load())
}

// DailyRisk returns the accumulated daily risk as a decimal amount.
func (e *Engine) DailyRisk() decimal.Decimal {
	return numeric.FromMinorUnits(e.dailyRisk.Load())
}

// Violation wraps a risk rejection in the shared error envelope for callers
// that route on canonical codes.
func Violation(err error) error {
	switch err.(type) {
	case *InsufficientBalanceError:
		return errs.New("risk/validate", errs.CodeInvalid,
			errs.WithCanonicalCode(errs.CanonicalInsufficientBalance),
			errs.WithCause(err))
	case *RiskLimitExceededError:
		return errs.New("risk/validate", errs.CodeInvalid,
			errs.WithCanonicalCode(errs.CanonicalRiskLimitExceeded),
			errs.WithCause(err))
	default:
		return err
	}
}
