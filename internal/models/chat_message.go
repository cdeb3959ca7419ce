package models

import "time"

// Chat turn speaker labels as stored. The companion label is mapped to the
// provider's "assistant" role when a context window is built.
const (
	SenderUser      = "user"
	SenderCompanion = "luvisa"
)

// ChatMessage is one append-only conversation turn. Rows are never updated;
// history is erased in bulk only.
type ChatMessage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	// TurnID deduplicates retried appends; conflicts are ignored so an
	// append is safe to repeat.
	TurnID string `gorm:"type:text;not null;uniqueIndex"`

	UserID  string `gorm:"type:text;not null;index"` // Owning account ID.
	Sender  string `gorm:"type:text;not null"`       // SenderUser or SenderCompanion.
	Message string `gorm:"type:text;not null"`       // Turn text as shown to the user.

	Timestamp time.Time `gorm:"not null;index"` // Turn time; history is ordered by it.
}
