package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertRule is the persisted definition of one alert rule.
type AlertRule struct {
	BaseModel

	UserID          string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Name            string         `gorm:"type:varchar(255);not null" json:"name"`
	Type            string         `gorm:"type:varchar(64);not null" json:"type"`
	Conditions      datatypes.JSON `json:"conditions"`
	Channels        datatypes.JSON `json:"channels"`
	Active          bool           `gorm:"default:true;index" json:"active"`
	CooldownSeconds int64          `gorm:"default:0" json:"cooldown_seconds"`
	LastTriggered   *time.Time     `json:"last_triggered"`

	// Position preserves the order rules were defined in.
	Position int `gorm:"default:0" json:"position"`
}
