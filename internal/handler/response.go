package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WriteDomainError maps a domain error to its HTTP status and writes
// the standard error response.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		WriteError(w, http.StatusBadRequest, "invalid_request", verr.Message)
		return
	}
	WriteError(w, statusOf(err), err.Error(), messageOf(err))
}

// statusOf maps domain sentinel errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrMarketNotFound),
		errors.Is(err, domain.ErrWebhookNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCallerNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMarketAlreadyExists),
		errors.Is(err, domain.ErrOrderNotCancelable),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrCantCloseBeforeExpiry),
		errors.Is(err, domain.ErrMarketStillActive),
		errors.Is(err, domain.ErrUnsettledPositions),
		errors.Is(err, domain.ErrMarketExpired):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientLockedBalance),
		errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, domain.ErrWithdrawalTooHigh):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDataExpired):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidSize),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrLengthMismatch),
		errors.Is(err, domain.ErrZeroField),
		errors.Is(err, domain.ErrInvalidExpiry),
		errors.Is(err, domain.ErrInvalidPriceSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageOf renders a human-readable message for a sentinel error.
func messageOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrDataExpired):
		return "the oracle reading for this subject is stale; retry after the feed refreshes"
	case errors.Is(err, domain.ErrCantCloseBeforeExpiry):
		return "positions can only be closed after the market's epoch expiry"
	case errors.Is(err, domain.ErrMarketStillActive):
		return "the market's epoch has not expired yet"
	case errors.Is(err, domain.ErrUnsettledPositions):
		return "close all filled positions before resetting the market"
	default:
		return strings.ReplaceAll(err.Error(), "_", " ")
	}
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}
