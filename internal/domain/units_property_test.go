package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Collateral unit round-trip: any amount expressible in whole units
// must convert to decimal and back without loss.

func TestProperty_UnitsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		units := rapid.Int64Range(0, 99_999_999_99).Draw(t, "units")

		d := UnitsToDecimal(units)
		got, ok := DecimalToUnits(d)
		if !ok {
			t.Fatalf("DecimalToUnits(%s) rejected value derived from %d units", d, units)
		}
		if got != units {
			t.Fatalf("round-trip failed: units=%d -> decimal=%s -> units=%d", units, d, got)
		}
	})
}

func TestProperty_DecimalToUnitsRejectsExcessPrecision(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		whole := rapid.Int64Range(0, 999_999).Draw(t, "whole")
		frac := rapid.Int64Range(1, 999).Draw(t, "frac")
		if frac%10 == 0 {
			t.Skip("trailing zero collapses to 2 decimal places")
		}

		// whole.XYZ with a non-zero third decimal digit.
		d := decimal.NewFromInt(whole).Add(decimal.New(frac, -3))

		if _, ok := DecimalToUnits(d); ok {
			t.Fatalf("DecimalToUnits(%s) should reject value with >2 decimal places", d)
		}
	})
}
