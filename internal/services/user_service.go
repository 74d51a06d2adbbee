package services

import (
	"context"
	"strings"
	"time"

	"courier/internal/domain/user"
	"courier/internal/events"
	"courier/internal/redis"
	"courier/internal/repository"
	courier_errors "courier/pkg/errors"
	"courier/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db        *gorm.DB
	users     repository.UserRepository
	cache     *redis.CacheStore
	publisher *redis.Publisher
}

func NewUserService(db *gorm.DB, users repository.UserRepository, cache *redis.CacheStore, publisher *redis.Publisher) *UserService {
	return &UserService{
		db:        db,
		users:     users,
		cache:     cache,
		publisher: publisher,
	}
}

type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return user.User{}, courier_errors.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, err
	}

	newUser := user.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		Status:       user.StatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, &newUser); err != nil {
		return user.User{}, err
	}
	return newUser, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.users.Exists(ctx, id)
}

// CascadeResult reports what a user deletion removed.
type CascadeResult struct {
	MessagesDeleted      int64 `json:"messages_deleted"`
	HistoryDeleted       int64 `json:"history_deleted"`
	NotificationsDeleted int64 `json:"notifications_deleted"`
}

// Delete runs the cleanup cascade: ACTIVE -> DELETING -> gone. The whole
// cascade shares one transaction; any failure rolls everything back and
// the user stays ACTIVE with all data intact. Dependent rows go in
// dependency order - history, then notifications, then messages, then
// the user row itself - without leaning on database-level ON DELETE
// CASCADE.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) (CascadeResult, error) {
	var result CascadeResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUsers := repository.NewUserRepository(tx)
		txMessages := repository.NewMessageRepository(tx)
		txNotifications := repository.NewNotificationRepository(tx)

		u, err := txUsers.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Status == user.StatusDeleting {
			return courier_errors.ErrConflict
		}

		if err := txUsers.SetStatus(ctx, userID, user.StatusDeleting); err != nil {
			return err
		}

		messageIDs, err := txMessages.IDsForUser(ctx, userID)
		if err != nil {
			return err
		}

		historyDeleted, err := txMessages.DeleteHistoryForMessages(ctx, messageIDs)
		if err != nil {
			return err
		}

		byUser, err := txNotifications.DeleteForUser(ctx, userID)
		if err != nil {
			return err
		}
		byMessage, err := txNotifications.DeleteForMessages(ctx, messageIDs)
		if err != nil {
			return err
		}

		messagesDeleted, err := txMessages.DeleteForUser(ctx, userID)
		if err != nil {
			return err
		}

		if err := txUsers.Delete(ctx, userID); err != nil {
			return err
		}

		result = CascadeResult{
			MessagesDeleted:      messagesDeleted,
			HistoryDeleted:       historyDeleted,
			NotificationsDeleted: byUser + byMessage,
		}
		return nil
	})
	if err != nil {
		return CascadeResult{}, err
	}

	s.invalidateAfterDelete(ctx, userID)
	s.publishDeleted(ctx, userID)

	return result, nil
}

func (s *UserService) invalidateAfterDelete(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUnreadCount(ctx, userID); err != nil {
		s.logf("unread count invalidation failed: %s", err)
	}
	if err := s.cache.InvalidateUserConversations(ctx, userID); err != nil {
		s.logf("conversation invalidation failed: %s", err)
	}
}

func (s *UserService) publishDeleted(ctx context.Context, userID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	event := events.Event{
		Type:      events.EventUserDeleted,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	payload, err := event.Marshal()
	if err != nil {
		s.logf("event marshal failed: %s", err)
		return
	}
	if err := s.publisher.Publish(ctx, events.ChannelForUser(userID), payload); err != nil {
		s.logf("event publish failed: %s", err)
	}
}

func (s *UserService) logf(template string, args ...interface{}) {
	if l := logger.GetGlobalLogger(); l != nil {
		l.Warnf(template, args...)
	}
}
