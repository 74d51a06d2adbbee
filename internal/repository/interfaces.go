package repository

import (
	"context"

	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	"courier/internal/domain/user"

	"github.com/google/uuid"
)

// SenderUnread is one row of the unread-by-sender aggregation.
type SenderUnread struct {
	SenderID uuid.UUID `json:"sender_id"`
	Count    int64     `json:"count"`
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)

	// UpdateContentVersioned applies an edit guarded by the optimistic
	// version column. Returns the number of rows changed: zero means the
	// expected version no longer matches (concurrent edit or delete).
	UpdateContentVersioned(ctx context.Context, id uuid.UUID, newContent string, expectedVersion int64) (int64, error)

	UnreadForUser(ctx context.Context, userID uuid.UUID) ([]message.Message, error)
	StreamUnreadForUser(ctx context.Context, userID uuid.UUID, batchSize int, fn func(batch []message.Message) error) error
	CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	BulkMarkAsRead(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error)
	UnreadCountBySender(ctx context.Context, userID uuid.UUID) ([]SenderUnread, error)

	GetConversation(ctx context.Context, userA, userB uuid.UUID) ([]message.Message, error)

	CreateHistory(ctx context.Context, h *message.MessageHistory) error
	HistoryForMessage(ctx context.Context, messageID uuid.UUID) ([]message.MessageHistory, error)

	IDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	DeleteHistoryForMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID uuid.UUID, notificationIDs []uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteForMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error)
}
