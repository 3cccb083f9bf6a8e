// Package schema defines the canonical market-data and order types shared
// across the kairos pipeline.
package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/errs"
)

// Exchange names a supported venue.
type Exchange string

const (
	// ExchangeBinance tags ticks originating from Binance.
	ExchangeBinance Exchange = "binance"
	// ExchangeOKX tags ticks originating from OKX.
	ExchangeOKX Exchange = "okx"
	// ExchangeKraken tags ticks originating from Kraken.
	ExchangeKraken Exchange = "kraken"
)

// Valid reports whether the exchange tag is one of the supported venues.
func (e Exchange) Valid() bool {
	switch e {
	case ExchangeBinance, ExchangeOKX, ExchangeKraken:
		return true
	default:
		return false
	}
}

// MarketTick is a single price/volume observation for a symbol at a point in
// time, from one exchange. Ticks are immutable once constructed and are
// value-copied for broadcast.
type MarketTick struct {
	ID        uuid.UUID       `json:"id"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
	Exchange  Exchange        `json:"exchange"`
}

// NewMarketTick constructs a tick with a fresh identifier and UTC timestamp.
func NewMarketTick(symbol string, price, volume decimal.Decimal, exchange Exchange) MarketTick {
	return MarketTick{
		ID:        uuid.New(),
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Price:     price,
		Volume:    volume,
		Timestamp: time.Now().UTC(),
		Exchange:  exchange,
	}
}

// Validate checks the tick for structural soundness.
func (t MarketTick) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return errs.New("schema/tick", errs.CodeInvalid,
			errs.WithCanonicalCode(errs.CanonicalInvalidSymbol),
			errs.WithMessage("symbol required"))
	}
	if !t.Price.IsPositive() {
		return errs.New("schema/tick", errs.CodeInvalid, errs.WithMessage("price must be positive"))
	}
	if t.Volume.IsNegative() {
		return errs.New("schema/tick", errs.CodeInvalid, errs.WithMessage("volume must be non-negative"))
	}
	if !t.Exchange.Valid() {
		return errs.New("schema/tick", errs.CodeInvalid, errs.WithMessage("unknown exchange"))
	}
	return nil
}
