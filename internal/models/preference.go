package models

import "gorm.io/datatypes"

// Preference holds one user's notification preference set. The nested
// channel, category and quiet-hours settings live in a single JSON column;
// the engine owns their shape and validation.
type Preference struct {
	BaseModel

	UserID   string         `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Settings datatypes.JSON `gorm:"not null" json:"settings"`
}
