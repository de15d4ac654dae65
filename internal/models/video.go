package models

import "time"

// Video is the promotable content entity. The boost columns are denormalized
// from the latest active Promotion for the video.
type Video struct {
	ID           string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	UserID       string     `gorm:"type:varchar(128);index" json:"user_id"`
	Title        string     `gorm:"type:varchar(255)" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	VideoURL     string     `gorm:"type:text" json:"video_url"`
	ThumbnailURL string     `gorm:"type:text" json:"thumbnail_url"`
	IsBoosted    bool       `gorm:"default:false;index" json:"is_boosted"`
	BoostEndsAt  *time.Time `json:"boost_ends_at"`
}
