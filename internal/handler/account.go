package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/service"
)

// AccountHandler handles account deposit and balance endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// depositRequest is the POST /accounts/{account_id}/deposits body.
type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// balanceResponse renders an account's balances.
type balanceResponse struct {
	AccountID string            `json:"account_id"`
	Free      string            `json:"free"`
	Locked    map[string]string `json:"locked"`
	Total     string            `json:"total"`
}

// Deposit handles POST /accounts/{account_id}/deposits.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var req depositRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	view, err := h.accountSvc.Deposit(accountID, req.Amount)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toBalanceResponse(view))
}

// GetBalance handles GET /accounts/{account_id}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	view, err := h.accountSvc.Balance(accountID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toBalanceResponse(view))
}

func toBalanceResponse(view service.BalanceView) balanceResponse {
	locked := make(map[string]string, len(view.Locked))
	for marketID, amount := range view.Locked {
		locked[marketID] = amount.String()
	}
	return balanceResponse{
		AccountID: view.AccountID,
		Free:      view.Free.String(),
		Locked:    locked,
		Total:     view.Total.String(),
	}
}
