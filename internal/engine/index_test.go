package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

func newIndexedOrder(id uint64, side domain.Side, price string, qty int64) *domain.Order {
	p, err := decimal.NewFromString(price)
	if err != nil {
		panic(err)
	}
	return &domain.Order{
		ID:             id,
		Trader:         "trader",
		Side:           side,
		ReferencePrice: p,
		Quantity:       qty,
		Status:         domain.OrderStatusActive,
	}
}

func TestOrderIndex_InsertRemove(t *testing.T) {
	ix := NewOrderIndex()
	o := newIndexedOrder(1, domain.SideLong, "10", 5)

	ix.Insert(o)
	if !ix.Contains(1) {
		t.Error("expected order 1 in index")
	}
	if ix.Len(domain.SideLong) != 1 {
		t.Errorf("expected 1 long, got %d", ix.Len(domain.SideLong))
	}

	ix.Remove(1)
	if ix.Contains(1) {
		t.Error("expected order 1 removed")
	}
	if ix.Len(domain.SideLong) != 0 {
		t.Errorf("expected 0 longs, got %d", ix.Len(domain.SideLong))
	}

	// Removing an absent id is a no-op.
	ix.Remove(99)
}

func TestOrderIndex_BucketFIFO(t *testing.T) {
	ix := NewOrderIndex()
	ix.Insert(newIndexedOrder(3, domain.SideShort, "10", 1))
	ix.Insert(newIndexedOrder(1, domain.SideShort, "10", 1))
	ix.Insert(newIndexedOrder(2, domain.SideShort, "10", 1))

	bucket := ix.Bucket(domain.SideShort, decimal.NewFromInt(10))
	if len(bucket) != 3 {
		t.Fatalf("expected 3 orders in bucket, got %d", len(bucket))
	}
	for i, want := range []uint64{1, 2, 3} {
		if bucket[i].ID != want {
			t.Errorf("position %d: expected order %d, got %d", i, want, bucket[i].ID)
		}
	}
}

func TestOrderIndex_BucketIsExactPrice(t *testing.T) {
	ix := NewOrderIndex()
	ix.Insert(newIndexedOrder(1, domain.SideShort, "10", 1))
	ix.Insert(newIndexedOrder(2, domain.SideShort, "10.5", 1))
	ix.Insert(newIndexedOrder(3, domain.SideShort, "11", 1))

	bucket := ix.Bucket(domain.SideShort, decimal.NewFromInt(10))
	if len(bucket) != 1 {
		t.Fatalf("expected 1 order at price 10, got %d", len(bucket))
	}
	if bucket[0].ID != 1 {
		t.Errorf("expected order 1, got %d", bucket[0].ID)
	}

	// Equivalent decimal representations hit the same bucket.
	bucket = ix.Bucket(domain.SideShort, decimal.RequireFromString("10.50"))
	if len(bucket) != 1 || bucket[0].ID != 2 {
		t.Errorf("expected order 2 at price 10.50, got %v", bucket)
	}
}

func TestOrderIndex_SidesIndependent(t *testing.T) {
	ix := NewOrderIndex()
	ix.Insert(newIndexedOrder(1, domain.SideLong, "10", 1))
	ix.Insert(newIndexedOrder(2, domain.SideShort, "10", 1))

	if got := ix.Bucket(domain.SideLong, decimal.NewFromInt(10)); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("unexpected long bucket: %v", got)
	}
	if got := ix.Bucket(domain.SideShort, decimal.NewFromInt(10)); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("unexpected short bucket: %v", got)
	}
}

func TestOrderIndex_Depth(t *testing.T) {
	ix := NewOrderIndex()
	ix.Insert(newIndexedOrder(1, domain.SideLong, "10", 5))
	ix.Insert(newIndexedOrder(2, domain.SideLong, "10", 3))
	ix.Insert(newIndexedOrder(3, domain.SideLong, "12", 7))
	ix.Insert(newIndexedOrder(4, domain.SideLong, "11", 2))

	levels := ix.Depth(domain.SideLong, 10)
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	// Price ascending with per-bucket aggregation.
	if !levels[0].Price.Equal(decimal.NewFromInt(10)) || levels[0].TotalQuantity != 8 || levels[0].OrderCount != 2 {
		t.Errorf("level 0: %+v", levels[0])
	}
	if !levels[1].Price.Equal(decimal.NewFromInt(11)) || levels[1].TotalQuantity != 2 {
		t.Errorf("level 1: %+v", levels[1])
	}
	if !levels[2].Price.Equal(decimal.NewFromInt(12)) || levels[2].TotalQuantity != 7 {
		t.Errorf("level 2: %+v", levels[2])
	}

	// Truncation to n levels.
	levels = ix.Depth(domain.SideLong, 2)
	if len(levels) != 2 {
		t.Errorf("expected 2 levels, got %d", len(levels))
	}

	if got := ix.Depth(domain.SideLong, 0); got != nil {
		t.Errorf("expected nil for n=0, got %v", got)
	}
}

func TestOrderIndex_DepthUsesRemainingQuantity(t *testing.T) {
	ix := NewOrderIndex()
	o := newIndexedOrder(1, domain.SideLong, "10", 5)
	o.FilledQuantity = 2
	ix.Insert(o)

	levels := ix.Depth(domain.SideLong, 1)
	if len(levels) != 1 || levels[0].TotalQuantity != 3 {
		t.Errorf("expected remaining 3 at level 0, got %v", levels)
	}
}

func TestOrderIndex_Clear(t *testing.T) {
	ix := NewOrderIndex()
	ix.Insert(newIndexedOrder(1, domain.SideLong, "10", 1))
	ix.Insert(newIndexedOrder(2, domain.SideShort, "11", 1))

	cleared := ix.Clear()
	if len(cleared) != 2 {
		t.Errorf("expected 2 cleared orders, got %d", len(cleared))
	}
	if ix.Len(domain.SideLong) != 0 || ix.Len(domain.SideShort) != 0 {
		t.Error("expected empty index after clear")
	}
	if ix.Contains(1) || ix.Contains(2) {
		t.Error("expected entries map emptied after clear")
	}
}
