package engine

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

// indexEntry is one resting order inside the OrderIndex.
type indexEntry struct {
	Price   decimal.Decimal
	OrderID uint64
	Order   *domain.Order
}

// entryLess orders entries by price ascending, then order id ascending.
// Within one price bucket this is strict FIFO, because order ids are
// assigned monotonically at arrival.
func entryLess(a, b indexEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.OrderID < b.OrderID
}

// PriceLevel is an aggregated view of one price bucket.
type PriceLevel struct {
	Price         decimal.Decimal
	TotalQuantity int64
	OrderCount    int
}

// OrderIndex maps (side, reference-price bucket) to the FIFO sequence
// of ids awaiting match. Each side is a B-tree keyed (price, id) with a
// secondary map for O(log n) removal by id.
type OrderIndex struct {
	longs   *btree.BTreeG[indexEntry]
	shorts  *btree.BTreeG[indexEntry]
	entries map[uint64]indexEntry
}

// NewOrderIndex creates an empty OrderIndex.
func NewOrderIndex() *OrderIndex {
	const degree = 32
	return &OrderIndex{
		longs:   btree.NewG[indexEntry](degree, entryLess),
		shorts:  btree.NewG[indexEntry](degree, entryLess),
		entries: make(map[uint64]indexEntry),
	}
}

func (ix *OrderIndex) side(s domain.Side) *btree.BTreeG[indexEntry] {
	if s == domain.SideLong {
		return ix.longs
	}
	return ix.shorts
}

// Insert adds an order to its side of the index.
func (ix *OrderIndex) Insert(o *domain.Order) {
	entry := indexEntry{
		Price:   o.ReferencePrice,
		OrderID: o.ID,
		Order:   o,
	}
	ix.side(o.Side).ReplaceOrInsert(entry)
	ix.entries[o.ID] = entry
}

// Remove deletes an order from the index by id. No-op when absent.
func (ix *OrderIndex) Remove(orderID uint64) {
	entry, ok := ix.entries[orderID]
	if !ok {
		return
	}
	delete(ix.entries, orderID)
	ix.side(entry.Order.Side).Delete(entry)
}

// Contains reports whether an order is resting in the index.
func (ix *OrderIndex) Contains(orderID uint64) bool {
	_, ok := ix.entries[orderID]
	return ok
}

// Bucket returns the orders resting on one side at exactly the given
// price, in arrival order. The slice is a snapshot: callers may mutate
// order state and Remove entries while iterating it.
func (ix *OrderIndex) Bucket(side domain.Side, price decimal.Decimal) []*domain.Order {
	var out []*domain.Order
	pivot := indexEntry{Price: price, OrderID: 0}
	ix.side(side).AscendGreaterOrEqual(pivot, func(entry indexEntry) bool {
		if !entry.Price.Equal(price) {
			return false
		}
		out = append(out, entry.Order)
		return true
	})
	return out
}

// Depth returns up to n aggregated price buckets for one side, price
// ascending, summing the remaining quantity of each resting order.
func (ix *OrderIndex) Depth(side domain.Side, n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	ix.side(side).Ascend(func(entry indexEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price.Equal(entry.Price) {
			levels[len(levels)-1].TotalQuantity += entry.Order.Remaining()
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.Remaining(),
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// Len returns the number of resting orders on one side.
func (ix *OrderIndex) Len(side domain.Side) int {
	return ix.side(side).Len()
}

// Clear empties both sides and returns the orders that were still
// resting, so the caller can refund their residuals.
func (ix *OrderIndex) Clear() []*domain.Order {
	out := make([]*domain.Order, 0, len(ix.entries))
	for _, entry := range ix.entries {
		out = append(out, entry.Order)
	}
	ix.longs.Clear(false)
	ix.shorts.Clear(false)
	ix.entries = make(map[uint64]indexEntry)
	return out
}
