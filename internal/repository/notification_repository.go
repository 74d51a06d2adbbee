package repository

import (
	"context"
	"errors"

	"courier/internal/domain/notification"
	courier_errors "courier/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	res := r.db.WithContext(ctx).Create(n)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return courier_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]notification.Notification, error) {
	var notifications []notification.Notification
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("created_at DESC").Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID uuid.UUID, notificationIDs []uuid.UUID) (int64, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ? AND id IN ?", userID, false, notificationIDs).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresNotificationRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&notification.Notification{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresNotificationRepository) DeleteForMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Delete(&notification.Notification{}, "message_id IN ?", messageIDs)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
