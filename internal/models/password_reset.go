package models

import "time"

// PasswordReset is the ephemeral reset entry for one email. Re-requests
// upsert the row; a successful password update deletes every row for the
// email, which is what makes the whole reset session single-use.
type PasswordReset struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email     string    `gorm:"type:text;not null;uniqueIndex"` // Lowercased email the code was issued for.
	Code      string    `gorm:"type:text;not null"`             // 6-digit zero-padded reset code.
	ExpiresAt time.Time `gorm:"not null"`                       // Absolute code expiry.

	Verified bool `gorm:"not null;default:false"` // Set by the middle verification step.

	// Confirmation token minted by the verification step. The final
	// password update still validates the original code; the token is a
	// correlation artifact for the client.
	Token          string     `gorm:"type:text"`
	TokenExpiresAt *time.Time // Token expiry, 10 minutes after verification.
}
