package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is the persisted form of one feed entry. Metadata and
// Channels are stored as JSON so the schema survives new channel types.
type Notification struct {
	BaseModel

	UserID      string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Type        string         `gorm:"type:varchar(64);not null" json:"type"`
	Priority    string         `gorm:"type:varchar(32);not null;default:'medium'" json:"priority"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Message     string         `gorm:"type:text" json:"message"`
	Timestamp   time.Time      `gorm:"index" json:"timestamp"`
	Read        bool           `gorm:"default:false;index" json:"read"`
	ActionURL   string         `gorm:"type:text" json:"action_url"`
	ActionLabel string         `gorm:"type:varchar(64)" json:"action_label"`
	Metadata    datatypes.JSON `json:"metadata"`
	Channels    datatypes.JSON `json:"channels"`
}
