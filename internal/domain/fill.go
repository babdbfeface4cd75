package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill represents one matched step between an incoming order and a
// resting order. Both orders receive a record sharing the same FillID.
type Fill struct {
	FillID         string
	OrderID        uint64
	CounterOrderID uint64
	Price          decimal.Decimal
	Quantity       int64
	ExecutedAt     time.Time
}
