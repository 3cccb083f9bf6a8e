// Package numeric provides minor-unit money conversions used by the risk
// accounting layer. Monetary amounts are held internally as integer counts of
// minor units (cents) so repeated lock-free additions never accumulate
// floating-point drift; decimals appear only at the public boundary.
package numeric

import "github.com/shopspring/decimal"

// MinorUnitScale is the number of decimal digits carried by a minor unit.
const MinorUnitScale = 2

var minorUnitFactor = decimal.New(1, MinorUnitScale)

// ToMinorUnits converts a decimal amount into minor units, truncating toward
// zero. 10.129 becomes 1012, -10.129 becomes -1012.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Truncate(0).IntPart()
}

// FromMinorUnits converts a minor-unit count back into a decimal amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -MinorUnitScale)
}
