package service

import (
	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/engine"
)

// CreateOrderRequest represents the input for order submission.
type CreateOrderRequest struct {
	SubjectID uint64
	AccountID string
	Side      string
	Quantity  int64 // collateral units
}

// OrderService handles order submission, cancellation, and lookup
// against the per-subject markets.
type OrderService struct {
	factory *engine.MarketFactory
}

// NewOrderService creates a new OrderService.
func NewOrderService(factory *engine.MarketFactory) *OrderService {
	return &OrderService{factory: factory}
}

// Create validates the request and submits the order to the subject's
// market, which snapshots the oracle score and runs matching. Returns
// the created order's id and its post-matching snapshot.
func (s *OrderService) Create(req CreateOrderRequest) (domain.Order, error) {
	if req.AccountID == "" {
		return domain.Order{}, &domain.ValidationError{Message: "account_id is required"}
	}
	side := domain.Side(req.Side)
	if !side.Valid() {
		return domain.Order{}, &domain.ValidationError{Message: "side must be long or short"}
	}

	m, err := s.factory.Get(req.SubjectID)
	if err != nil {
		return domain.Order{}, err
	}

	orderID, err := m.CreateOrder(req.AccountID, side, req.Quantity)
	if err != nil {
		return domain.Order{}, err
	}
	return m.GetOrder(orderID)
}

// Cancel cancels an order owned by caller, refunding its residual.
func (s *OrderService) Cancel(subjectID uint64, caller string, orderID uint64) (domain.Order, error) {
	if caller == "" {
		return domain.Order{}, &domain.ValidationError{Message: "account_id is required"}
	}
	m, err := s.factory.Get(subjectID)
	if err != nil {
		return domain.Order{}, err
	}
	return m.CancelOrder(caller, orderID)
}

// Get returns a snapshot of one order.
func (s *OrderService) Get(subjectID uint64, orderID uint64) (domain.Order, error) {
	m, err := s.factory.Get(subjectID)
	if err != nil {
		return domain.Order{}, err
	}
	return m.GetOrder(orderID)
}
