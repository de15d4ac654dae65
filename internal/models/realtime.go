package models

import "time"

// DirectMessage is a row of the messages table that feeds the DM badge.
type DirectMessage struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SenderID    string    `gorm:"type:varchar(128);index" json:"sender_id"`
	RecipientID string    `gorm:"type:varchar(128);index:idx_messages_recipient_read,priority:1" json:"recipient_id"`
	Body        string    `gorm:"type:text" json:"body"`
	IsRead      bool      `gorm:"default:false;index:idx_messages_recipient_read,priority:2" json:"is_read"`
}

func (DirectMessage) TableName() string {
	return "messages"
}

type Notification struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `gorm:"type:varchar(128);index:idx_notifications_user_read,priority:1" json:"user_id"`
	ActorID   string    `gorm:"type:varchar(128)" json:"actor_id"`
	Type      string    `gorm:"type:varchar(50)" json:"type"`
	IsRead    bool      `gorm:"default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
}

// NoteBoxEntry is a prayer/testimony note left in a user's NoteBox.
type NoteBoxEntry struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SenderID    string    `gorm:"type:varchar(128)" json:"sender_id"`
	RecipientID string    `gorm:"type:varchar(128);index:idx_notebox_recipient_read,priority:1" json:"recipient_id"`
	Body        string    `gorm:"type:text" json:"body"`
	IsRead      bool      `gorm:"default:false;index:idx_notebox_recipient_read,priority:2" json:"is_read"`
}

func (NoteBoxEntry) TableName() string {
	return "notebox"
}
