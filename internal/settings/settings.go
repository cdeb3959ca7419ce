// Package settings stores site-level configuration in the database so the
// companion persona can be adjusted without a redeploy.
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/friendix-ai/companion/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB config keys and defaults.
const (
	// ProductNameKey is the public product name used in outgoing copy and
	// as the brand-filter replacement.
	ProductNameKey = "PRODUCT_NAME"
	// DefaultProductName is the fallback product name.
	DefaultProductName = "Friendix.ai"
	// CompanionNameKey is the display name of the companion persona.
	CompanionNameKey = "COMPANION_NAME"
	// DefaultCompanionName is the fallback persona display name.
	DefaultCompanionName = "Luvisa 💗"
	// CompanionEmailKey is the synthetic contact email of the persona.
	CompanionEmailKey = "COMPANION_EMAIL"
	// DefaultCompanionEmail is the fallback persona contact email.
	DefaultCompanionEmail = "luvisa@ai.com"
	// CompanionStatusKey is the status line shown on the persona card.
	CompanionStatusKey = "COMPANION_STATUS"
	// DefaultCompanionStatus is the fallback persona status line.
	DefaultCompanionStatus = "Thinking of you... 💭"
	// CompanionAvatarKey is the avatar URL shown on the persona card.
	CompanionAvatarKey = "COMPANION_AVATAR"
	// DefaultCompanionAvatar is the fallback persona avatar URL.
	DefaultCompanionAvatar = "/avatars/luvisa_avatar.png"
)

// defaults lists every seeded key with its fallback value.
var defaults = map[string]string{
	ProductNameKey:     DefaultProductName,
	CompanionNameKey:   DefaultCompanionName,
	CompanionEmailKey:  DefaultCompanionEmail,
	CompanionStatusKey: DefaultCompanionStatus,
	CompanionAvatarKey: DefaultCompanionAvatar,
}

// EnsureDefaults inserts any missing setting rows. Existing values are
// never overwritten.
func EnsureDefaults(conn *gorm.DB) error {
	for key, value := range defaults {
		encoded, errMarshal := json.Marshal(value)
		if errMarshal != nil {
			return fmt.Errorf("settings: marshal %s: %w", key, errMarshal)
		}
		row := models.Setting{Key: key, Value: datatypes.JSON(encoded)}
		if errCreate := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&row).Error; errCreate != nil {
			return fmt.Errorf("settings: seed %s: %w", key, errCreate)
		}
	}
	return nil
}

// GetString returns the string value stored under key, falling back to the
// seeded default when the row is missing or unreadable.
func GetString(conn *gorm.DB, key string) string {
	fallback := defaults[key]
	if conn == nil {
		return fallback
	}
	var row models.Setting
	if errFind := conn.Where("key = ?", key).First(&row).Error; errFind != nil {
		return fallback
	}
	var value string
	if errUnmarshal := json.Unmarshal(row.Value, &value); errUnmarshal != nil {
		return fallback
	}
	return value
}

// SetString stores a string value under key, upserting the row.
func SetString(conn *gorm.DB, key, value string) error {
	encoded, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("settings: marshal %s: %w", key, errMarshal)
	}
	row := models.Setting{Key: key, Value: datatypes.JSON(encoded)}
	if errUpsert := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; errUpsert != nil {
		return fmt.Errorf("settings: set %s: %w", key, errUpsert)
	}
	return nil
}
