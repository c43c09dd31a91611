package razorpay

import (
	"encoding/json"
	"fmt"
)

// Webhook event names handled by the wallet top-up flow.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// HeaderSignature and HeaderEventID are set on every webhook delivery.
const (
	HeaderSignature = "X-Razorpay-Signature"
	HeaderEventID   = "X-Razorpay-Event-Id"
)

// WebhookEvent is the envelope posted to the webhook endpoint.
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

// WebhookPayload carries the entities the event refers to.
type WebhookPayload struct {
	Payment *struct {
		Entity Payment `json:"entity"`
	} `json:"payment,omitempty"`
}

// PaymentEntity returns the payment the event refers to, if any.
func (e WebhookEvent) PaymentEntity() (Payment, bool) {
	if e.Payload.Payment == nil || e.Payload.Payment.Entity.ID == "" {
		return Payment{}, false
	}
	return e.Payload.Payment.Entity, true
}

// ParseWebhookEvent decodes a raw webhook body.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Event == "" {
		return WebhookEvent{}, fmt.Errorf("webhook event name missing")
	}
	return event, nil
}
