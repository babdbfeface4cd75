package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/service"
)

// OrderHandler handles order submission, lookup, and cancellation.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the POST /markets/{subject_id}/orders body.
type submitOrderRequest struct {
	AccountID string `json:"account_id"`
	Side      string `json:"side"`
	Quantity  int64  `json:"quantity"`
}

// fillResponse renders one fill of an order.
type fillResponse struct {
	FillID         string `json:"fill_id"`
	CounterOrderID uint64 `json:"counter_order_id"`
	Price          string `json:"price"`
	Quantity       int64  `json:"quantity"`
	ExecutedAt     string `json:"executed_at"`
}

// orderResponse renders an order snapshot.
type orderResponse struct {
	OrderID        uint64         `json:"order_id"`
	AccountID      string         `json:"account_id"`
	SubjectID      uint64         `json:"subject_id"`
	Side           string         `json:"side"`
	ReferencePrice string         `json:"reference_price"`
	Quantity       int64          `json:"quantity"`
	FilledQuantity int64          `json:"filled_quantity"`
	Status         string         `json:"status"`
	CreatedAt      string         `json:"created_at"`
	Fills          []fillResponse `json:"fills"`
}

// SubmitOrder handles POST /markets/{subject_id}/orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}

	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.Create(service.CreateOrderRequest{
		SubjectID: subjectID,
		AccountID: req.AccountID,
		Side:      req.Side,
		Quantity:  req.Quantity,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /markets/{subject_id}/orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}
	orderID, ok := parseUintParam(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orderSvc.Get(subjectID, orderID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder handles DELETE /markets/{subject_id}/orders/{order_id}.
// The caller identifies itself with the X-Account-ID header and must
// own the order.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}
	orderID, ok := parseUintParam(w, r, "order_id")
	if !ok {
		return
	}
	caller := r.Header.Get("X-Account-ID")

	order, err := h.orderSvc.Cancel(subjectID, caller, orderID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// parseUintParam parses a uint64 chi URL parameter, writing a 400
// response and returning ok=false on failure.
func parseUintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

func toOrderResponse(o domain.Order) orderResponse {
	fills := make([]fillResponse, 0, len(o.Fills))
	for _, f := range o.Fills {
		fills = append(fills, fillResponse{
			FillID:         f.FillID,
			CounterOrderID: f.CounterOrderID,
			Price:          f.Price.String(),
			Quantity:       f.Quantity,
			ExecutedAt:     f.ExecutedAt.UTC().Format(time.RFC3339),
		})
	}
	return orderResponse{
		OrderID:        o.ID,
		AccountID:      o.Trader,
		SubjectID:      o.SubjectID,
		Side:           string(o.Side),
		ReferencePrice: o.ReferencePrice.String(),
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
		Fills:          fills,
	}
}
