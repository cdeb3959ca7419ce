package models

import "time"

// Profile holds the mutable display attributes owned by a user account.
// It is embedded into the users table with a profile_ column prefix and has
// no lifecycle of its own.
type Profile struct {
	DisplayName string `gorm:"type:text"` // Display name; empty means "derive from email local part".
	Bio         string `gorm:"type:text"` // Status text; empty means the default greeting.

	AvatarData        []byte `gorm:"type:bytea"` // Avatar image bytes, capped at 100 KB.
	AvatarContentType string `gorm:"type:text"`  // MIME type of the stored avatar.

	// Write-once fields assigned by the sequential identity assigner.
	// FriendID empty means "not assigned yet".
	FriendID       string `gorm:"type:text;index"` // Permanent friend identifier (FRD-000042).
	FriendIDNumber string `gorm:"type:text"`       // Zero-padded rank digits (000042).
	CreationYear   int    `gorm:"not null;default:0"`
	IsEarlyUser    bool   `gorm:"not null;default:false"` // True for signup ranks 1-99.
}

// User represents an end-user account stored in the database.
type User struct {
	ID string `gorm:"type:text;primaryKey"` // UUIDv7; embeds the creation instant.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email, stored lowercased.
	Password string `gorm:"type:text"`                      // Bcrypt credential hash.

	// HashedPassword is the legacy credential column. Login checks it when
	// Password is empty; new writes always target Password.
	HashedPassword string `gorm:"type:text"`

	Profile Profile `gorm:"embedded;embeddedPrefix:profile_"` // Owned display attributes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp, basis of the sequential rank.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
