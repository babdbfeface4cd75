package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/engine"
	"github.com/kolfi-labs/mindmarket/internal/ledger"
	"github.com/kolfi-labs/mindmarket/internal/oracle"
	"github.com/kolfi-labs/mindmarket/internal/store"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	"order.filled":    true,
	"order.canceled":  true,
	"position.closed": true,
	"market.expired":  true,
	"price.stale":     true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	AccountID string
	URL       string
	Events    []string
}

// WebhookService handles webhook CRUD and event dispatch. It is the
// Notifier consumed by the engine and the oracle.
type WebhookService struct {
	store  *store.WebhookStore
	ledger *ledger.Ledger
	client *http.Client
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, l *ledger.Ledger, timeout time.Duration) *WebhookService {
	return &WebhookService{
		store:  webhookStore,
		ledger: l,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were
// created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !s.ledger.Exists(req.AccountID) {
		return nil, false, domain.ErrAccountNotFound
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: order.filled, order.canceled, position.closed, market.expired, price.stale",
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	// Upsert each (account_id, event) pair.
	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			AccountID: req.AccountID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created := s.store.Upsert(w)
		if created {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else {
			existing := s.store.GetByAccountEvent(req.AccountID, event)
			if existing != nil {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List validates the account exists and returns all its subscriptions.
func (s *WebhookService) List(accountID string) ([]*domain.Webhook, error) {
	if !s.ledger.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.store.ListByAccount(accountID), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// orderFilledPayload is the JSON payload for order.filled webhooks.
type orderFilledPayload struct {
	Event     string          `json:"event"`
	Timestamp string          `json:"timestamp"`
	Data      orderFilledData `json:"data"`
}

type orderFilledData struct {
	FillID              string `json:"fill_id"`
	AccountID           string `json:"account_id"`
	SubjectID           uint64 `json:"subject_id"`
	OrderID             uint64 `json:"order_id"`
	CounterOrderID      uint64 `json:"counter_order_id"`
	Side                string `json:"side"`
	Price               string `json:"price"`
	FillQuantity        int64  `json:"fill_quantity"`
	OrderStatus         string `json:"order_status"`
	OrderFilledQuantity int64  `json:"order_filled_quantity"`
	OrderQuantity       int64  `json:"order_quantity"`
}

// orderEventPayload is the JSON payload for order.canceled webhooks.
type orderEventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      orderEventData `json:"data"`
}

type orderEventData struct {
	AccountID      string `json:"account_id"`
	SubjectID      uint64 `json:"subject_id"`
	OrderID        uint64 `json:"order_id"`
	Side           string `json:"side"`
	Price          string `json:"price"`
	Quantity       int64  `json:"quantity"`
	FilledQuantity int64  `json:"filled_quantity"`
	Status         string `json:"status"`
}

// positionClosedPayload is the JSON payload for position.closed webhooks.
type positionClosedPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      positionClosedData `json:"data"`
}

type positionClosedData struct {
	AccountID      string `json:"account_id"`
	SubjectID      uint64 `json:"subject_id"`
	OrderID        uint64 `json:"order_id"`
	Side           string `json:"side"`
	EntryPrice     string `json:"entry_price"`
	ExitPrice      string `json:"exit_price"`
	FilledQuantity int64  `json:"filled_quantity"`
	PnL            int64  `json:"pnl"`
	Fee            int64  `json:"fee"`
	Payout         int64  `json:"payout"`
}

// marketExpiredPayload is the JSON payload for market.expired webhooks.
type marketExpiredPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		SubjectID uint64 `json:"subject_id"`
		ExpiredAt string `json:"expired_at"`
	} `json:"data"`
}

// priceStalePayload is the JSON payload for price.stale webhooks.
type priceStalePayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		SubjectID uint64 `json:"subject_id"`
		Score     string `json:"score"`
		UpdatedAt string `json:"updated_at"`
	} `json:"data"`
}

// DispatchOrderFilled notifies the order's owner about one match step.
// Fire-and-forget — errors are silently ignored.
func (s *WebhookService) DispatchOrderFilled(subjectID uint64, fill *domain.Fill, order *domain.Order) {
	wh := s.store.GetByAccountEvent(order.Trader, "order.filled")
	if wh == nil {
		return
	}

	payload := orderFilledPayload{
		Event:     "order.filled",
		Timestamp: fill.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderFilledData{
			FillID:              fill.FillID,
			AccountID:           order.Trader,
			SubjectID:           subjectID,
			OrderID:             fill.OrderID,
			CounterOrderID:      fill.CounterOrderID,
			Side:                string(order.Side),
			Price:               fill.Price.String(),
			FillQuantity:        fill.Quantity,
			OrderStatus:         string(order.Status),
			OrderFilledQuantity: order.FilledQuantity,
			OrderQuantity:       order.Quantity,
		},
	}

	go s.deliver(wh, payload)
}

// DispatchOrderCanceled notifies the order's owner about a cancel.
// Fire-and-forget.
func (s *WebhookService) DispatchOrderCanceled(subjectID uint64, order *domain.Order) {
	wh := s.store.GetByAccountEvent(order.Trader, "order.canceled")
	if wh == nil {
		return
	}

	payload := orderEventPayload{
		Event:     "order.canceled",
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderEventData{
			AccountID:      order.Trader,
			SubjectID:      subjectID,
			OrderID:        order.ID,
			Side:           string(order.Side),
			Price:          order.ReferencePrice.String(),
			Quantity:       order.Quantity,
			FilledQuantity: order.FilledQuantity,
			Status:         string(order.Status),
		},
	}

	go s.deliver(wh, payload)
}

// DispatchPositionClosed notifies the order's owner about settlement.
// Fire-and-forget.
func (s *WebhookService) DispatchPositionClosed(subjectID uint64, order *domain.Order, result engine.CloseResult) {
	wh := s.store.GetByAccountEvent(order.Trader, "position.closed")
	if wh == nil {
		return
	}

	payload := positionClosedPayload{
		Event:     "position.closed",
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: positionClosedData{
			AccountID:      order.Trader,
			SubjectID:      subjectID,
			OrderID:        order.ID,
			Side:           string(order.Side),
			EntryPrice:     order.ReferencePrice.String(),
			ExitPrice:      result.ExitPrice.String(),
			FilledQuantity: result.FilledQuantity,
			PnL:            result.PnL,
			Fee:            result.Fee,
			Payout:         result.Payout,
		},
	}

	go s.deliver(wh, payload)
}

// DispatchMarketExpired broadcasts an epoch expiry to every subscriber
// of the market.expired event. Fire-and-forget.
func (s *WebhookService) DispatchMarketExpired(subjectID uint64, expiry time.Time) {
	subs := s.store.ListByEvent("market.expired")
	if len(subs) == 0 {
		return
	}

	var payload marketExpiredPayload
	payload.Event = "market.expired"
	payload.Timestamp = time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
	payload.Data.SubjectID = subjectID
	payload.Data.ExpiredAt = expiry.UTC().Truncate(time.Second).Format(time.RFC3339)

	for _, wh := range subs {
		go s.deliver(wh, payload)
	}
}

// DispatchPriceStale broadcasts that a reading went stale before being
// overwritten. Fire-and-forget.
func (s *WebhookService) DispatchPriceStale(p oracle.Point) {
	subs := s.store.ListByEvent("price.stale")
	if len(subs) == 0 {
		return
	}

	var payload priceStalePayload
	payload.Event = "price.stale"
	payload.Timestamp = time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
	payload.Data.SubjectID = p.SubjectID
	payload.Data.Score = p.Score.String()
	payload.Data.UpdatedAt = p.UpdatedAt.UTC().Truncate(time.Second).Format(time.RFC3339)

	for _, wh := range subs {
		go s.deliver(wh, payload)
	}
}

// DispatchPriceUpdated is part of the oracle Notifier surface. Updates
// are high-frequency and have no webhook event; only staleness is
// broadcast.
func (s *WebhookService) DispatchPriceUpdated(oracle.Point) {}

// deliver sends the webhook payload via HTTP POST.
// Errors are silently ignored (fire-and-forget).
func (s *WebhookService) deliver(wh *domain.Webhook, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", wh.Event)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}
