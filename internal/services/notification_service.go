package services

import (
	"context"

	"courier/internal/domain/notification"
	"courier/internal/repository"

	"github.com/google/uuid"
)

// NotificationService is the read side of the fan-out: listing, read
// tracking and counts. Creation happens inside MessageService.Send.
type NotificationService struct {
	notifications repository.NotificationRepository
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]notification.Notification, error) {
	return s.notifications.ListForUser(ctx, userID, unreadOnly)
}

// MarkRead marks the listed notifications read and returns how many rows
// changed. Foreign and already-read ids are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, notificationIDs []uuid.UUID) (int64, error) {
	return s.notifications.MarkRead(ctx, userID, notificationIDs)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}
