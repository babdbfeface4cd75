package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content type and status code", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"status": "ok"}

		WriteJSON(w, http.StatusOK, data)

		if got := w.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if w.Code != http.StatusOK {
			t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
		}

		var result map[string]string
		if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if result["status"] != "ok" {
			t.Errorf("body status = %q, want %q", result["status"], "ok")
		}
	})

	t.Run("encodes struct with snake_case tags", func(t *testing.T) {
		type resp struct {
			SubjectID uint64 `json:"subject_id"`
			Score     string `json:"score"`
		}
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, resp{SubjectID: 7, Score: "42.5"})

		var raw map[string]any
		if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if raw["subject_id"] != float64(7) {
			t.Errorf("subject_id = %v, want 7", raw["subject_id"])
		}
		if raw["score"] != "42.5" {
			t.Errorf("score = %v, want %q", raw["score"], "42.5")
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusBadRequest, "invalid_request", "missing required field")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Error != "invalid_request" {
		t.Errorf("error = %q, want %q", resp.Error, "invalid_request")
	}
	if resp.Message != "missing required field" {
		t.Errorf("message = %q, want %q", resp.Message, "missing required field")
	}
}

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &domain.ValidationError{Message: "bad input"}, http.StatusBadRequest, "invalid_request"},
		{"account not found", domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
		{"order not found", domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{"caller not owner", domain.ErrCallerNotOwner, http.StatusForbidden, "caller_not_owner"},
		{"market exists", domain.ErrMarketAlreadyExists, http.StatusConflict, "market_already_exists"},
		{"close before expiry", domain.ErrCantCloseBeforeExpiry, http.StatusConflict, "cant_close_before_expiry"},
		{"unsettled positions", domain.ErrUnsettledPositions, http.StatusConflict, "unsettled_positions"},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"stale reading", domain.ErrDataExpired, http.StatusServiceUnavailable, "data_expired"},
		{"invalid size", domain.ErrInvalidSize, http.StatusBadRequest, "invalid_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteDomainError(w, tc.err)

			if w.Code != tc.status {
				t.Errorf("status code = %d, want %d", w.Code, tc.status)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Error != tc.code {
				t.Errorf("error = %q, want %q", resp.Error, tc.code)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	t.Run("decodes valid JSON with correct content type", func(t *testing.T) {
		body := `{"account_id":"alice","quantity":42}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")

		var result struct {
			AccountID string `json:"account_id"`
			Quantity  int64  `json:"quantity"`
		}
		if err := ParseJSON(r, &result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AccountID != "alice" {
			t.Errorf("account_id = %q, want %q", result.AccountID, "alice")
		}
		if result.Quantity != 42 {
			t.Errorf("quantity = %d, want %d", result.Quantity, 42)
		}
	})

	t.Run("accepts content type with charset", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"account_id":"alice"}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")

		var result struct {
			AccountID string `json:"account_id"`
		}
		if err := ParseJSON(r, &result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects missing content type", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"account_id":"alice"}`))

		var result struct {
			AccountID string `json:"account_id"`
		}
		if err := ParseJSON(r, &result); err == nil {
			t.Fatal("expected error for missing Content-Type")
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{invalid`))
		r.Header.Set("Content-Type", "application/json")

		var result struct {
			AccountID string `json:"account_id"`
		}
		if err := ParseJSON(r, &result); err == nil {
			t.Fatal("expected error for malformed JSON")
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"account_id":"alice","bogus":1}`))
		r.Header.Set("Content-Type", "application/json")

		var result struct {
			AccountID string `json:"account_id"`
		}
		if err := ParseJSON(r, &result); err == nil {
			t.Fatal("expected error for unknown fields")
		}
	})

	t.Run("rejects empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		r.Header.Set("Content-Type", "application/json")

		var result struct {
			AccountID string `json:"account_id"`
		}
		if err := ParseJSON(r, &result); err == nil {
			t.Fatal("expected error for empty body")
		}
	})
}
