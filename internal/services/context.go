package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// WithUserContext attaches the authenticated user to the request context.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}
