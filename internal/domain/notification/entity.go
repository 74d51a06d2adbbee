package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification represents the notifications table. The unique index on
// (user_id, message_id) makes the creation fan-out idempotent: a retried
// save cannot produce a second notification for the same message.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_notifications_user_message" json:"user_id"`
	MessageID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_notifications_user_message" json:"message_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
