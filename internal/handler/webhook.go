package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/service"
)

// WebhookHandler handles webhook subscription endpoints.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// upsertWebhookRequest is the POST /webhooks body.
type upsertWebhookRequest struct {
	AccountID string   `json:"account_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
}

// webhookResponse renders one subscription.
type webhookResponse struct {
	WebhookID string `json:"webhook_id"`
	AccountID string `json:"account_id"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Upsert handles POST /webhooks.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertWebhookRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, anyCreated, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest{
		AccountID: req.AccountID,
		URL:       req.URL,
		Events:    req.Events,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	status := http.StatusOK
	if anyCreated {
		status = http.StatusCreated
	}
	WriteJSON(w, status, map[string]any{"webhooks": toWebhookResponses(webhooks)})
}

// List handles GET /webhooks?account_id=….
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "account_id query parameter is required")
		return
	}

	webhooks, err := h.webhookSvc.List(accountID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"webhooks": toWebhookResponses(webhooks)})
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhook_id")

	if err := h.webhookSvc.Delete(webhookID); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"deleted": webhookID})
}

func toWebhookResponses(webhooks []*domain.Webhook) []webhookResponse {
	out := make([]webhookResponse, 0, len(webhooks))
	for _, wh := range webhooks {
		out = append(out, webhookResponse{
			WebhookID: wh.WebhookID,
			AccountID: wh.AccountID,
			Event:     wh.Event,
			URL:       wh.URL,
			CreatedAt: wh.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: wh.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
