package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSideOpposite(t *testing.T) {
	if SideLong.Opposite() != SideShort {
		t.Errorf("expected opposite of long to be short, got %s", SideLong.Opposite())
	}
	if SideShort.Opposite() != SideLong {
		t.Errorf("expected opposite of short to be long, got %s", SideShort.Opposite())
	}
}

func TestSideValid(t *testing.T) {
	if !SideLong.Valid() {
		t.Error("expected long to be valid")
	}
	if !SideShort.Valid() {
		t.Error("expected short to be valid")
	}
	if Side("buy").Valid() {
		t.Error("expected buy to be invalid")
	}
	if Side("").Valid() {
		t.Error("expected empty side to be invalid")
	}
}

func TestOrderRemaining(t *testing.T) {
	o := &Order{Quantity: 100, FilledQuantity: 30}
	if o.Remaining() != 70 {
		t.Errorf("expected remaining 70, got %d", o.Remaining())
	}

	o.FilledQuantity = 100
	if o.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %d", o.Remaining())
	}
}

func TestOrderOpen(t *testing.T) {
	tests := []struct {
		status OrderStatus
		open   bool
	}{
		{OrderStatusActive, true},
		{OrderStatusPartialFilled, true},
		{OrderStatusFilled, false},
		{OrderStatusCanceled, false},
	}
	for _, tt := range tests {
		o := &Order{Status: tt.status}
		if o.Open() != tt.open {
			t.Errorf("status %s: expected open=%v, got %v", tt.status, tt.open, o.Open())
		}
	}
}

func TestOrderReferencePriceSnapshot(t *testing.T) {
	price := decimal.NewFromFloat(12.34)
	o := &Order{ReferencePrice: price}
	if !o.ReferencePrice.Equal(price) {
		t.Errorf("expected reference price %s, got %s", price, o.ReferencePrice)
	}
}
