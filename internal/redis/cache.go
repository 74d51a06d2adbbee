package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - unread:{user_id}              - unread message count, short TTL
// - conversation:{low}:{high}     - rendered conversation threads between two users
//
// The conversation TTL defaults to 60s; writes touching either
// participant invalidate the pair eagerly, the TTL is the backstop.

// CacheConfig contains configuration for caching
type CacheConfig struct {
	UnreadTTL       time.Duration // TTL for unread-count cache (default 60s)
	ConversationTTL time.Duration // TTL for conversation cache (default 60s)
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		UnreadTTL:       60 * time.Second,
		ConversationTTL: 60 * time.Second,
	}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

// --- Unread Count Cache ---

// GetUnreadCount retrieves a cached unread count. The bool reports a hit.
func (c *CacheStore) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	key := fmt.Sprintf("unread:%s", userID.String())
	count, err := c.client.Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, false, nil // Cache miss
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// SetUnreadCount stores an unread count
func (c *CacheStore) SetUnreadCount(ctx context.Context, userID uuid.UUID, count int64) error {
	key := fmt.Sprintf("unread:%s", userID.String())
	return c.client.Set(ctx, key, count, c.config.UnreadTTL).Err()
}

// InvalidateUnreadCount removes a user's unread count from cache
func (c *CacheStore) InvalidateUnreadCount(ctx context.Context, userID uuid.UUID) error {
	key := fmt.Sprintf("unread:%s", userID.String())
	return c.client.Del(ctx, key).Err()
}

// --- Conversation Cache ---

// conversationKey is order-independent so both participants share one entry.
func conversationKey(userA, userB uuid.UUID) string {
	a, b := userA.String(), userB.String()
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return fmt.Sprintf("conversation:%s:%s", a, b)
}

// GetConversation retrieves a cached conversation payload into dest.
// The bool reports a hit.
func (c *CacheStore) GetConversation(ctx context.Context, userA, userB uuid.UUID, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, conversationKey(userA, userB)).Result()
	if err == goredis.Nil {
		return false, nil // Cache miss
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetConversation stores a conversation payload
func (c *CacheStore) SetConversation(ctx context.Context, userA, userB uuid.UUID, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, conversationKey(userA, userB), data, c.config.ConversationTTL).Err()
}

// InvalidateConversation removes the pair's conversation from cache
func (c *CacheStore) InvalidateConversation(ctx context.Context, userA, userB uuid.UUID) error {
	return c.client.Del(ctx, conversationKey(userA, userB)).Err()
}

// InvalidateUserConversations removes every cached conversation involving
// userID. Requires scanning, so it is reserved for user deletion.
func (c *CacheStore) InvalidateUserConversations(ctx context.Context, userID uuid.UUID) error {
	iter := c.client.Scan(ctx, 0, "conversation:*", 100).Iterator()

	id := userID.String()
	var keysToDelete []string
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.Contains(key, id) {
			keysToDelete = append(keysToDelete, key)
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keysToDelete) > 0 {
		return c.client.Del(ctx, keysToDelete...).Err()
	}
	return nil
}

// --- Utility Methods ---

// Ping checks if Redis is available
func (c *CacheStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
