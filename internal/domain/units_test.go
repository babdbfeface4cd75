package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecimalToUnits(t *testing.T) {
	tests := []struct {
		in    string
		units int64
		ok    bool
	}{
		{"0.01", 1, true},
		{"1", 100, true},
		{"10.50", 1050, true},
		{"999.99", 99999, true},
		{"0.001", 0, false},
		{"1.005", 0, false},
	}
	for _, tt := range tests {
		d, err := decimal.NewFromString(tt.in)
		if err != nil {
			t.Fatalf("bad test input %q: %v", tt.in, err)
		}
		units, ok := DecimalToUnits(d)
		if ok != tt.ok {
			t.Errorf("%s: expected ok=%v, got %v", tt.in, tt.ok, ok)
			continue
		}
		if ok && units != tt.units {
			t.Errorf("%s: expected %d units, got %d", tt.in, tt.units, units)
		}
	}
}

func TestUnitsToDecimal(t *testing.T) {
	tests := []struct {
		units int64
		want  string
	}{
		{1, "0.01"},
		{100, "1"},
		{1050, "10.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		got := UnitsToDecimal(tt.units)
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("%d units: expected %s, got %s", tt.units, want, got)
		}
	}
}
