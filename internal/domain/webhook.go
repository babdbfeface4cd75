package domain

import "time"

// Webhook represents a notification subscription for one
// (account, event) pair.
type Webhook struct {
	WebhookID string
	AccountID string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
