package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayStripe PaymentGateway = "stripe"
)

// PaymentSessionStatus mirrors the provider's checkout session states.
type PaymentSessionStatus string

const (
	PaymentSessionStatusOpen     PaymentSessionStatus = "open"
	PaymentSessionStatusComplete PaymentSessionStatus = "complete"
	PaymentSessionStatusExpired  PaymentSessionStatus = "expired"
)

// PaymentSession tracks a hosted checkout session created for a promotion.
// An expired session here is the "expired before payment" marker; it never
// produces a Promotion row.
type PaymentSession struct {
	ID                uint                 `gorm:"primaryKey" json:"id"`
	PaymentGateway    PaymentGateway       `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	CheckoutSessionID string               `gorm:"type:varchar(255);uniqueIndex" json:"checkout_session_id"`
	ContentID         string               `gorm:"type:varchar(64);index" json:"content_id"`
	OwnerID           string               `gorm:"type:varchar(128);index" json:"owner_id"`
	AmountMinorUnits  int64                `json:"amount_minor_units"`
	Currency          string               `gorm:"type:varchar(3)" json:"currency"`
	Status            PaymentSessionStatus `gorm:"type:varchar(20);default:'open'" json:"status"`
	RequestMetadata   json.RawMessage      `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata  json.RawMessage      `gorm:"type:jsonb" json:"response_metadata"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	DeletedAt         gorm.DeletedAt       `gorm:"index" json:"deleted_at,omitempty"`
}
