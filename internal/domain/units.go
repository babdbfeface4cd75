package domain

import (
	"github.com/shopspring/decimal"
)

// Collateral amounts move through the ledger as int64 fixed-point units
// with two decimal places of the external collateral token.
const unitScale = 100

// DecimalToUnits converts an external collateral amount to int64 units.
// It returns false if the amount carries more than 2 decimal places.
func DecimalToUnits(d decimal.Decimal) (int64, bool) {
	scaled := d.Mul(decimal.NewFromInt(unitScale))
	if !scaled.IsInteger() {
		return 0, false
	}
	return scaled.IntPart(), true
}

// UnitsToDecimal converts int64 collateral units back to an external
// token amount.
func UnitsToDecimal(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Div(decimal.NewFromInt(unitScale))
}
