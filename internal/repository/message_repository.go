package repository

import (
	"context"
	"errors"
	"time"

	"courier/internal/domain/message"
	courier_errors "courier/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return courier_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, courier_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) UpdateContentVersioned(ctx context.Context, id uuid.UUID, newContent string, expectedVersion int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"content":    newContent,
			"edited":     true,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// UnreadForUser returns unread messages received by userID, oldest first.
// Each call re-queries current state.
func (r *PostgresMessageRepository) UnreadForUser(ctx context.Context, userID uuid.UUID) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND read = ?", userID, false).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// StreamUnreadForUser walks the unread set in created_at order without
// loading it whole, invoking fn once per batch. Keyset pagination on
// (created_at, id) keeps batches stable under concurrent inserts.
func (r *PostgresMessageRepository) StreamUnreadForUser(ctx context.Context, userID uuid.UUID, batchSize int, fn func(batch []message.Message) error) error {
	if batchSize <= 0 {
		batchSize = 200
	}

	var lastCreated time.Time
	var lastID uuid.UUID
	first := true

	for {
		q := r.db.WithContext(ctx).
			Where("receiver_id = ? AND read = ?", userID, false)
		if !first {
			q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", lastCreated, lastCreated, lastID)
		}

		var batch []message.Message
		if err := q.Order("created_at ASC").Order("id ASC").Limit(batchSize).Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		last := batch[len(batch)-1]
		lastCreated = last.CreatedAt
		lastID = last.ID
		first = false

		if len(batch) < batchSize {
			return nil
		}
	}
}

func (r *PostgresMessageRepository) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("receiver_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// BulkMarkAsRead flips read=true for the listed messages received by
// userID. Ids the user does not own and already-read ids fall out of the
// WHERE clause, so the call is idempotent and the returned count is the
// number of rows actually changed.
func (r *PostgresMessageRepository) BulkMarkAsRead(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("receiver_id = ? AND read = ? AND id IN ?", userID, false, messageIDs).
		Updates(map[string]interface{}{
			"read":       true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) UnreadCountBySender(ctx context.Context, userID uuid.UUID) ([]SenderUnread, error) {
	var rows []SenderUnread
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Select("sender_id, COUNT(id) AS count").
		Where("receiver_id = ? AND read = ?", userID, false).
		Group("sender_id").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostgresMessageRepository) GetConversation(ctx context.Context, userA, userB uuid.UUID) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) CreateHistory(ctx context.Context, h *message.MessageHistory) error {
	res := r.db.WithContext(ctx).Create(h)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) HistoryForMessage(ctx context.Context, messageID uuid.UUID) ([]message.MessageHistory, error) {
	var history []message.MessageHistory
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("edited_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (r *PostgresMessageRepository) IDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresMessageRepository) DeleteHistoryForMessages(ctx context.Context, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Delete(&message.MessageHistory{}, "message_id IN ?", messageIDs)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&message.Message{}, "sender_id = ? OR receiver_id = ?", userID, userID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
