package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores one JSON-valued configuration entry keyed by name.
type Setting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Key   string         `gorm:"type:text;not null;uniqueIndex"` // Setting name.
	Value datatypes.JSON `gorm:"type:jsonb;not null"`            // JSON-encoded value.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
