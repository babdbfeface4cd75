package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates the direction of an order against the subject's
// mindshare score: Long profits when the score rises, Short when it falls.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the side an order matches against.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusActive        OrderStatus = "active"
	OrderStatusPartialFilled OrderStatus = "partial_filled"
	OrderStatusFilled        OrderStatus = "filled"
	OrderStatusCanceled      OrderStatus = "canceled"
)

// Order represents a directional position request against a subject's
// mindshare score. Ids are assigned by the owning market, monotonically
// from 1. ReferencePrice is the oracle score snapshot captured at
// creation; it is both the matching-bucket key and the PnL entry price.
type Order struct {
	ID             uint64
	Trader         string
	SubjectID      uint64
	Side           Side
	ReferencePrice decimal.Decimal
	Quantity       int64 // collateral units
	FilledQuantity int64
	CreatedAt      time.Time
	Status         OrderStatus
	Fills          []*Fill
}

// Remaining returns the unmatched quantity.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Open reports whether the order can still participate in matching.
func (o *Order) Open() bool {
	return o.Status == OrderStatusActive || o.Status == OrderStatusPartialFilled
}
