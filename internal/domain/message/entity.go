package message

import (
	"time"

	"github.com/google/uuid"
)

// Message represents the messages table. A message belongs to both its
// sender and its receiver; either side's deletion removes it.
type Message struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID        uuid.UUID     `gorm:"type:uuid;index:idx_messages_sender_created" json:"sender_id"`
	ReceiverID      uuid.UUID     `gorm:"type:uuid;index:idx_messages_receiver_read" json:"receiver_id"`
	Content         string        `json:"content"`
	Read            bool          `gorm:"index:idx_messages_receiver_read" json:"read"`
	Edited          bool          `json:"edited"`
	ParentMessageID uuid.NullUUID `gorm:"type:uuid;index" json:"parent_message_id"`
	// Version guards concurrent edits: every content update increments it
	// and carries the expected value in its WHERE clause.
	Version   int64     `gorm:"default:1" json:"version"`
	CreatedAt time.Time `gorm:"index:idx_messages_sender_created;index:idx_messages_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageHistory is the append-only edit log: one row per edit, holding
// the content as it was immediately before that edit.
type MessageHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID  uuid.UUID `gorm:"type:uuid;index" json:"message_id"`
	OldContent string    `json:"old_content"`
	EditedAt   time.Time `json:"edited_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (MessageHistory) TableName() string {
	return "message_histories"
}
