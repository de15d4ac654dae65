package models

import (
	"encoding/json"
	"time"
)

// PaymentCallbackHistory is the audit log of verified provider webhooks.
type PaymentCallbackHistory struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	PaymentGateway    PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	EventID           string          `gorm:"type:varchar(255);index" json:"event_id"`
	EventType         string          `gorm:"type:varchar(100);index" json:"event_type"`
	CheckoutSessionID string          `gorm:"type:varchar(255);index" json:"checkout_session_id"`
	Metadata          json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	CreatedAt         time.Time       `json:"created_at"`
}
