package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kolfi-labs/mindmarket/internal/engine"
	"github.com/kolfi-labs/mindmarket/internal/service"
)

// MarketHandler handles market lifecycle, views, and the
// administrator-gated settlement endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// createMarketRequest is the POST /markets body.
type createMarketRequest struct {
	SubjectID     uint64 `json:"subject_id"`
	PriceSourceID uint64 `json:"price_source_id"`
	ExpiresAt     string `json:"expires_at"` // RFC3339
}

// resetRequest is the POST /markets/reset body.
type resetRequest struct {
	SubjectIDs []uint64 `json:"subject_ids"`
}

// withdrawFeeRequest is the POST /markets/{subject_id}/fees/withdraw body.
type withdrawFeeRequest struct {
	Amount int64 `json:"amount"`
}

// marketResponse renders a market view.
type marketResponse struct {
	SubjectID        uint64 `json:"subject_id"`
	PriceSourceID    uint64 `json:"price_source_id"`
	ExpiresAt        string `json:"expires_at"`
	Volume           int64  `json:"volume"`
	FeeCollected     int64  `json:"fee_collected"`
	ActiveOrderCount int64  `json:"active_order_count"`
	Custody          string `json:"custody"`
}

// priceLevelResponse renders one aggregated price bucket.
type priceLevelResponse struct {
	Price         string `json:"price"`
	TotalQuantity int64  `json:"total_quantity"`
	OrderCount    int    `json:"order_count"`
}

// depthResponse renders both sides of a market's index.
type depthResponse struct {
	SubjectID uint64               `json:"subject_id"`
	Longs     []priceLevelResponse `json:"longs"`
	Shorts    []priceLevelResponse `json:"shorts"`
}

// closeResponse renders a settlement outcome.
type closeResponse struct {
	OrderID        uint64 `json:"order_id"`
	AccountID      string `json:"account_id"`
	FilledQuantity int64  `json:"filled_quantity"`
	PnL            int64  `json:"pnl"`
	Fee            int64  `json:"fee"`
	Payout         int64  `json:"payout"`
	ExitPrice      string `json:"exit_price"`
}

// Create handles POST /markets (admin).
func (h *MarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	expiry, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "expires_at must be an RFC3339 timestamp")
		return
	}

	view, err := h.marketSvc.Create(req.SubjectID, req.PriceSourceID, expiry)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toMarketResponse(view))
}

// Get handles GET /markets/{subject_id}.
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}

	view, err := h.marketSvc.Get(subjectID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toMarketResponse(view))
}

// List handles GET /markets.
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	views := h.marketSvc.List()
	out := make([]marketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toMarketResponse(v))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"markets": out})
}

// GetDepth handles GET /markets/{subject_id}/depth?levels=N.
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}

	levels := 10
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			WriteError(w, http.StatusBadRequest, "invalid_request", "levels must be an integer between 1 and 100")
			return
		}
		levels = n
	}

	depth, err := h.marketSvc.Depth(subjectID, levels)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, depthResponse{
		SubjectID: depth.SubjectID,
		Longs:     toPriceLevels(depth.Longs),
		Shorts:    toPriceLevels(depth.Shorts),
	})
}

// ClosePosition handles POST /markets/{subject_id}/orders/{order_id}/close (admin).
func (h *MarketHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}
	orderID, ok := parseUintParam(w, r, "order_id")
	if !ok {
		return
	}

	result, err := h.marketSvc.Close(subjectID, orderID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, closeResponse{
		OrderID:        result.OrderID,
		AccountID:      result.Trader,
		FilledQuantity: result.FilledQuantity,
		PnL:            result.PnL,
		Fee:            result.Fee,
		Payout:         result.Payout,
		ExitPrice:      result.ExitPrice.String(),
	})
}

// Reset handles POST /markets/reset (admin).
func (h *MarketHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.marketSvc.Reset(req.SubjectIDs); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"reset": req.SubjectIDs})
}

// WithdrawFee handles POST /markets/{subject_id}/fees/withdraw (admin).
func (h *MarketHandler) WithdrawFee(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}

	var req withdrawFeeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.marketSvc.WithdrawFee(subjectID, req.Amount); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"withdrawn": req.Amount})
}

func toMarketResponse(v service.MarketView) marketResponse {
	return marketResponse{
		SubjectID:        v.SubjectID,
		PriceSourceID:    v.PriceSourceID,
		ExpiresAt:        v.Expiry.UTC().Format(time.RFC3339),
		Volume:           v.Volume,
		FeeCollected:     v.FeeCollected,
		ActiveOrderCount: v.ActiveOrderCount,
		Custody:          v.Custody.String(),
	}
}

func toPriceLevels(levels []engine.PriceLevel) []priceLevelResponse {
	out := make([]priceLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, priceLevelResponse{
			Price:         l.Price.String(),
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		})
	}
	return out
}
