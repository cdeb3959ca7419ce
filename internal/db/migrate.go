package db

import (
	"fmt"

	"github.com/friendix-ai/companion/internal/models"
	internalsettings "github.com/friendix-ai/companion/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations and seeds default settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.ChatMessage{},
		&models.PasswordReset{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := internalsettings.EnsureDefaults(conn); errSeed != nil {
		return fmt.Errorf("db: seed settings: %w", errSeed)
	}
	return nil
}
