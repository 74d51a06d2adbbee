package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventNotificationNew EventType = "notification.new"
	EventMessageRead     EventType = "message.read"
	EventUserDeleted     EventType = "user.deleted"
)

// Event is the envelope published on redis pub/sub and pushed to
// websocket clients verbatim.
type Event struct {
	Type           EventType `json:"type"`
	UserID         uuid.UUID `json:"user_id"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	NotificationID uuid.UUID `json:"notification_id,omitempty"`
	SenderID       uuid.UUID `json:"sender_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ChannelForUser is the per-recipient pub/sub channel.
func ChannelForUser(userID uuid.UUID) string {
	return fmt.Sprintf("notify:%s", userID.String())
}

// UserChannelPattern matches every per-recipient channel.
const UserChannelPattern = "notify:*"

// UserFromChannel extracts the recipient from a channel name.
func UserFromChannel(channel string) (uuid.UUID, bool) {
	const prefix = "notify:"
	if !strings.HasPrefix(channel, prefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, prefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
