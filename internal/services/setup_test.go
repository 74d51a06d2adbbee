package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	"courier/internal/domain/user"
	"courier/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&message.Message{},
		&message.MessageHistory{},
		&notification.Notification{},
	))

	return db
}

func newMessageService(db *gorm.DB, batchSize int) *MessageService {
	return NewMessageService(
		db,
		repository.NewMessageRepository(db),
		repository.NewUserRepository(db),
		nil, nil,
		batchSize,
	)
}

func newUserService(db *gorm.DB) *UserService {
	return NewUserService(db, repository.NewUserRepository(db), nil, nil)
}

func createTestUser(t *testing.T, db *gorm.DB, email string) user.User {
	t.Helper()

	u := user.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "not-a-real-hash",
		Status:       user.StatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// createTestMessage inserts a message directly, bypassing the service,
// so tests can control timestamps and read flags.
func createTestMessage(t *testing.T, db *gorm.DB, sender, receiver uuid.UUID, content string, createdAt time.Time, read bool) message.Message {
	t.Helper()

	m := message.Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Read:       read,
		Version:    1,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

func testCtx() context.Context {
	return context.Background()
}
