package models

import "time"

// Profile mirrors the public profile row keyed by the auth provider's user id.
type Profile struct {
	ID          string    `gorm:"type:varchar(128);primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Username    string    `gorm:"type:varchar(100);uniqueIndex" json:"username"`
	DisplayName string    `gorm:"type:varchar(255)" json:"display_name"`
	Email       string    `gorm:"type:varchar(255)" json:"email"`
	AvatarURL   string    `gorm:"type:text" json:"avatar_url"`
}
