package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	"courier/internal/events"
	"courier/internal/redis"
	"courier/internal/repository"
	courier_errors "courier/pkg/errors"
	"courier/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageService owns every message mutation. Side effects the original
// design hid behind save hooks - notification fan-out on create, history
// capture on edit - are explicit calls inside the same transaction here,
// so they commit or roll back with the message itself.
type MessageService struct {
	db        *gorm.DB
	messages  repository.MessageRepository
	users     repository.UserRepository
	cache     *redis.CacheStore
	publisher *redis.Publisher
	batchSize int
}

func NewMessageService(db *gorm.DB, messages repository.MessageRepository, users repository.UserRepository, cache *redis.CacheStore, publisher *redis.Publisher, batchSize int) *MessageService {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &MessageService{
		db:        db,
		messages:  messages,
		users:     users,
		cache:     cache,
		publisher: publisher,
		batchSize: batchSize,
	}
}

type SendInput struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Content    string
	ParentID   uuid.NullUUID
}

// Send persists a new message and fans out exactly one notification for
// the receiver inside the same transaction. A failed fan-out rolls the
// message back: there is no window where the message exists without its
// notification.
func (s *MessageService) Send(ctx context.Context, in SendInput) (message.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return message.Message{}, courier_errors.ErrInvalidInput
	}

	for _, id := range []uuid.UUID{in.SenderID, in.ReceiverID} {
		exists, err := s.users.Exists(ctx, id)
		if err != nil {
			return message.Message{}, err
		}
		if !exists {
			return message.Message{}, courier_errors.ErrInvalidInput
		}
	}

	msg := message.Message{
		ID:         uuid.New(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    content,
		Version:    1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	var created notification.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMessages := repository.NewMessageRepository(tx)

		if in.ParentID.Valid {
			if _, err := txMessages.GetByID(ctx, in.ParentID.UUID); err != nil {
				if errors.Is(err, courier_errors.ErrNotFound) {
					return courier_errors.ErrInvalidInput
				}
				return err
			}
			msg.ParentMessageID = in.ParentID
		}

		if err := txMessages.Create(ctx, &msg); err != nil {
			return err
		}

		n, err := fanOutNotification(ctx, tx, msg)
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return message.Message{}, err
	}

	s.invalidateAfterWrite(ctx, msg.SenderID, msg.ReceiverID)
	s.publishNotification(ctx, created, msg)

	return msg, nil
}

// fanOutNotification derives the receiver's notification from a freshly
// created message. It runs once per successful create, never on edits.
// The unique (user_id, message_id) index absorbs a duplicate dispatch.
func fanOutNotification(ctx context.Context, tx *gorm.DB, msg message.Message) (notification.Notification, error) {
	n := notification.Notification{
		ID:        uuid.New(),
		UserID:    msg.ReceiverID,
		MessageID: msg.ID,
		CreatedAt: time.Now(),
	}
	err := repository.NewNotificationRepository(tx).Create(ctx, &n)
	if err != nil {
		if errors.Is(err, courier_errors.ErrAlreadyExists) {
			return n, nil
		}
		return notification.Notification{}, err
	}
	return n, nil
}

// Edit captures the pre-edit content into the history log and applies
// the new content under an optimistic version check, all in one
// transaction. A version mismatch surfaces as ErrConflict and nothing is
// written. Editing to the identical content is a no-op and logs nothing.
func (s *MessageService) Edit(ctx context.Context, messageID, editorID uuid.UUID, newContent string) (message.Message, error) {
	content := strings.TrimSpace(newContent)
	if content == "" {
		return message.Message{}, courier_errors.ErrInvalidInput
	}

	var updated message.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txMessages := repository.NewMessageRepository(tx)

		current, err := txMessages.GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if editorID != current.SenderID && editorID != current.ReceiverID {
			return courier_errors.ErrForbidden
		}
		if current.Content == content {
			updated = current
			return nil
		}

		history := message.MessageHistory{
			ID:         uuid.New(),
			MessageID:  current.ID,
			OldContent: current.Content,
			EditedAt:   time.Now(),
		}
		if err := txMessages.CreateHistory(ctx, &history); err != nil {
			return err
		}

		rows, err := txMessages.UpdateContentVersioned(ctx, current.ID, content, current.Version)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Lost the race against a concurrent edit or delete.
			return courier_errors.ErrConflict
		}

		updated = current
		updated.Content = content
		updated.Edited = true
		updated.Version = current.Version + 1
		updated.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return message.Message{}, err
	}

	s.invalidateAfterWrite(ctx, updated.SenderID, updated.ReceiverID)

	return updated, nil
}

func (s *MessageService) GetByID(ctx context.Context, messageID uuid.UUID) (message.Message, error) {
	return s.messages.GetByID(ctx, messageID)
}

// History lists the edit log of a message, most recent edit first.
func (s *MessageService) History(ctx context.Context, messageID uuid.UUID) ([]message.MessageHistory, error) {
	if _, err := s.messages.GetByID(ctx, messageID); err != nil {
		return nil, err
	}
	return s.messages.HistoryForMessage(ctx, messageID)
}

// UnreadForUser returns the user's unread messages ordered by created_at
// ascending. Every call re-evaluates current state.
func (s *MessageService) UnreadForUser(ctx context.Context, userID uuid.UUID) ([]message.Message, error) {
	return s.messages.UnreadForUser(ctx, userID)
}

// StreamUnreadForUser iterates the unread set in batches without loading
// it whole.
func (s *MessageService) StreamUnreadForUser(ctx context.Context, userID uuid.UUID, fn func(batch []message.Message) error) error {
	return s.messages.StreamUnreadForUser(ctx, userID, s.batchSize, fn)
}

// CountUnreadForUser returns the unread cardinality, served from cache
// when fresh.
func (s *MessageService) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.cache != nil {
		if count, ok, err := s.cache.GetUnreadCount(ctx, userID); err == nil && ok {
			return count, nil
		}
	}

	count, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetUnreadCount(ctx, userID, count); err != nil {
			s.logf("unread count cache set failed: %s", err)
		}
	}
	return count, nil
}

// MarkAsReadForUser flips read=true for the listed messages received by
// userID and reports how many rows actually changed. Unknown, foreign
// and already-read ids are ignored, so repeating a call returns zero.
func (s *MessageService) MarkAsReadForUser(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error) {
	changed, err := s.messages.BulkMarkAsRead(ctx, userID, messageIDs)
	if err != nil {
		return 0, err
	}

	if changed > 0 {
		if s.cache != nil {
			if err := s.cache.InvalidateUnreadCount(ctx, userID); err != nil {
				s.logf("unread count invalidation failed: %s", err)
			}
		}
		s.publishEvent(ctx, events.Event{
			Type:      events.EventMessageRead,
			UserID:    userID,
			CreatedAt: time.Now(),
		})
	}
	return changed, nil
}

// UnreadCountBySender groups the user's unread messages by sender,
// largest bucket first.
func (s *MessageService) UnreadCountBySender(ctx context.Context, userID uuid.UUID) ([]repository.SenderUnread, error) {
	return s.messages.UnreadCountBySender(ctx, userID)
}

// ThreadNode is one message with its replies nested beneath it.
type ThreadNode struct {
	Message message.Message `json:"message"`
	Replies []*ThreadNode   `json:"replies,omitempty"`
}

// Conversation returns the threaded exchange between two users, cached
// for a short TTL. Both participants must exist.
func (s *MessageService) Conversation(ctx context.Context, userA, userB uuid.UUID) ([]*ThreadNode, error) {
	for _, id := range []uuid.UUID{userA, userB} {
		exists, err := s.users.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, courier_errors.ErrNotFound
		}
	}

	if s.cache != nil {
		var cached []*ThreadNode
		if ok, err := s.cache.GetConversation(ctx, userA, userB, &cached); err == nil && ok {
			return cached, nil
		}
	}

	messages, err := s.messages.GetConversation(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	threads := buildThreads(messages)

	if s.cache != nil {
		if err := s.cache.SetConversation(ctx, userA, userB, threads); err != nil {
			s.logf("conversation cache set failed: %s", err)
		}
	}
	return threads, nil
}

// buildThreads arranges a chronologically ordered message slice into
// top-level messages with nested replies. A visited set guards against
// parent-reference cycles, which would otherwise recurse forever.
func buildThreads(messages []message.Message) []*ThreadNode {
	byID := make(map[uuid.UUID]message.Message, len(messages))
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, m := range messages {
		byID[m.ID] = m
	}
	for _, m := range messages {
		if m.ParentMessageID.Valid {
			if _, ok := byID[m.ParentMessageID.UUID]; ok {
				parent := m.ParentMessageID.UUID
				children[parent] = append(children[parent], m.ID)
			}
		}
	}

	visited := make(map[uuid.UUID]bool, len(messages))

	var build func(id uuid.UUID) *ThreadNode
	build = func(id uuid.UUID) *ThreadNode {
		if visited[id] {
			return nil
		}
		visited[id] = true

		node := &ThreadNode{Message: byID[id]}
		for _, childID := range children[id] {
			if child := build(childID); child != nil {
				node.Replies = append(node.Replies, child)
			}
		}
		return node
	}

	var threads []*ThreadNode
	for _, m := range messages {
		// Top-level: no parent, or the parent lives outside this exchange.
		isTopLevel := !m.ParentMessageID.Valid
		if m.ParentMessageID.Valid {
			if _, ok := byID[m.ParentMessageID.UUID]; !ok {
				isTopLevel = true
			}
		}
		if !isTopLevel || visited[m.ID] {
			continue
		}
		if node := build(m.ID); node != nil {
			threads = append(threads, node)
		}
	}

	// Messages reachable only through a cycle still need a home.
	for _, m := range messages {
		if !visited[m.ID] {
			if node := build(m.ID); node != nil {
				threads = append(threads, node)
			}
		}
	}
	return threads
}

func (s *MessageService) invalidateAfterWrite(ctx context.Context, senderID, receiverID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUnreadCount(ctx, receiverID); err != nil {
		s.logf("unread count invalidation failed: %s", err)
	}
	if err := s.cache.InvalidateConversation(ctx, senderID, receiverID); err != nil {
		s.logf("conversation invalidation failed: %s", err)
	}
}

func (s *MessageService) publishNotification(ctx context.Context, n notification.Notification, msg message.Message) {
	s.publishEvent(ctx, events.Event{
		Type:           events.EventNotificationNew,
		UserID:         n.UserID,
		MessageID:      msg.ID,
		NotificationID: n.ID,
		SenderID:       msg.SenderID,
		CreatedAt:      n.CreatedAt,
	})
}

func (s *MessageService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	payload, err := event.Marshal()
	if err != nil {
		s.logf("event marshal failed: %s", err)
		return
	}
	if err := s.publisher.Publish(ctx, events.ChannelForUser(event.UserID), payload); err != nil {
		s.logf("event publish failed: %s", err)
	}
}

func (s *MessageService) logf(template string, args ...interface{}) {
	if l := logger.GetGlobalLogger(); l != nil {
		l.Warnf(template, args...)
	}
}
