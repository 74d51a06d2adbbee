package services

import (
	"testing"

	"courier/config"
	"courier/internal/repository"
	courier_errors "courier/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) *AuthService {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiryMin: 15}
	return NewAuthService(repository.NewUserRepository(db), cfg)
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	auth := newAuthService(db)
	users := newUserService(db)

	registered, err := users.Register(testCtx(), RegisterInput{
		Email:    "alice@test.com",
		Password: "Secret@123",
	})
	require.NoError(t, err)

	resp, err := auth.Login(testCtx(), "alice@test.com", "Secret@123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = auth.Login(testCtx(), "alice@test.com", "wrong")
	assert.ErrorIs(t, err, courier_errors.ErrUnauthorized)

	_, err = auth.Login(testCtx(), "nobody@test.com", "Secret@123")
	assert.ErrorIs(t, err, courier_errors.ErrUnauthorized)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	db := newTestDB(t)
	auth := newAuthService(db)

	userID := uuid.New()
	token, err := auth.IssueAccessToken(userID)
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)

	_, err = auth.ParseAccessToken("not-a-token")
	assert.ErrorIs(t, err, courier_errors.ErrUnauthorized)

	_, err = auth.ParseAccessToken("")
	assert.ErrorIs(t, err, courier_errors.ErrUnauthorized)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	db := newTestDB(t)
	auth := newAuthService(db)
	other := NewAuthService(repository.NewUserRepository(db), &config.Config{JWTSecret: "different", JWTExpiryMin: 15})

	token, err := auth.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = other.ParseAccessToken(token)
	assert.ErrorIs(t, err, courier_errors.ErrUnauthorized)
}
