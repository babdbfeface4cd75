package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/service"
)

// OracleHandler handles oracle reads and updater-gated batch updates.
type OracleHandler struct {
	oracleSvc *service.OracleService
}

// NewOracleHandler creates a new OracleHandler.
func NewOracleHandler(oracleSvc *service.OracleService) *OracleHandler {
	return &OracleHandler{oracleSvc: oracleSvc}
}

// updateRequest is the POST /oracle/prices body. The three arrays are
// positional, mirroring the feed's batch format.
type updateRequest struct {
	SubjectIDs []uint64          `json:"subject_ids"`
	Ranks      []uint64          `json:"ranks"`
	Scores     []decimal.Decimal `json:"scores"`
}

// priceResponse renders one oracle reading.
type priceResponse struct {
	SubjectID uint64 `json:"subject_id"`
	Rank      uint64 `json:"rank"`
	Score     string `json:"score"`
	UpdatedAt string `json:"updated_at"`
	Stale     bool   `json:"stale"`
}

// Update handles POST /oracle/prices (updater).
func (h *OracleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// Length mismatches are also caught by the oracle, but an early
	// check keeps the slice assembly below simple.
	if len(req.SubjectIDs) != len(req.Ranks) || len(req.SubjectIDs) != len(req.Scores) {
		WriteError(w, http.StatusBadRequest, "length_mismatch", "subject_ids, ranks, and scores must have equal lengths")
		return
	}

	updates := make([]service.PriceUpdate, len(req.SubjectIDs))
	for i := range req.SubjectIDs {
		updates[i] = service.PriceUpdate{
			SubjectID: req.SubjectIDs[i],
			Rank:      req.Ranks[i],
			Score:     req.Scores[i],
		}
	}

	if err := h.oracleSvc.Update(updates); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"updated": len(updates)})
}

// GetPrice handles GET /oracle/prices/{subject_id}.
func (h *OracleHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := parseUintParam(w, r, "subject_id")
	if !ok {
		return
	}

	view, found := h.oracleSvc.Price(subjectID)
	if !found {
		WriteError(w, http.StatusNotFound, "price_not_found", "no reading stored for this subject")
		return
	}
	WriteJSON(w, http.StatusOK, priceResponse{
		SubjectID: view.SubjectID,
		Rank:      view.Rank,
		Score:     view.Score.String(),
		UpdatedAt: view.UpdatedAt.UTC().Format(time.RFC3339),
		Stale:     view.Stale,
	})
}
