package models

import (
	"time"
)

// PromotionStatus is the lifecycle state of a paid boost.
type PromotionStatus string

const (
	PromotionStatusActive  PromotionStatus = "active"
	PromotionStatusExpired PromotionStatus = "expired"
)

// Promotion is a paid, time-bounded boost of a video.
// CheckoutSessionID is the idempotency key: one row per checkout session.
type Promotion struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContentID             string          `gorm:"type:varchar(64);not null;index:idx_promotions_content_status,priority:1" json:"content_id"`
	OwnerID               string          `gorm:"type:varchar(128);index" json:"owner_id"`
	CheckoutSessionID     string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"checkout_session_id"`
	DurationDays          int             `gorm:"not null" json:"duration_days"`
	DailyBudgetMinorUnits int64           `gorm:"not null" json:"daily_budget_minor_units"`
	TotalAmountMinorUnits int64           `gorm:"not null" json:"total_amount_minor_units"`
	Currency              string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status                PromotionStatus `gorm:"type:varchar(20);not null;index:idx_promotions_content_status,priority:2;index:idx_promotions_status_ends" json:"status"`
	StartsAt              time.Time       `json:"starts_at"`
	EndsAt                time.Time       `gorm:"index:idx_promotions_status_ends" json:"ends_at"`
}

// IsLive reports whether the promotion should still boost its content at now.
func (p Promotion) IsLive(now time.Time) bool {
	return p.Status == PromotionStatusActive && p.EndsAt.After(now)
}
