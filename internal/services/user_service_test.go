package services

import (
	"testing"

	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	"courier/internal/domain/user"
	courier_errors "courier/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister(t *testing.T) {
	db := newTestDB(t)
	svc := newUserService(db)

	u, err := svc.Register(testCtx(), RegisterInput{
		Email:     "  Alice@Test.com ",
		FirstName: "Alice",
		LastName:  "Johnson",
		Password:  "Secret@123",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@test.com", u.Email)
	assert.Equal(t, user.StatusActive, u.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secret@123")))

	_, err = svc.Register(testCtx(), RegisterInput{Email: "alice@test.com", Password: "Other@123"})
	assert.ErrorIs(t, err, courier_errors.ErrAlreadyExists)

	_, err = svc.Register(testCtx(), RegisterInput{Email: "", Password: "Secret@123"})
	assert.ErrorIs(t, err, courier_errors.ErrInvalidInput)

	_, err = svc.Register(testCtx(), RegisterInput{Email: "bob@test.com", Password: ""})
	assert.ErrorIs(t, err, courier_errors.ErrInvalidInput)
}

func TestDeleteCascadesUserData(t *testing.T) {
	db := newTestDB(t)
	users := newUserService(db)
	messages := newMessageService(db, 0)

	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")
	carol := createTestUser(t, db, "carol@test.com")

	// Alice sends three, receives two.
	var aliceSent []message.Message
	for _, content := range []string{"one", "two", "three"} {
		m, err := messages.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: content})
		require.NoError(t, err)
		aliceSent = append(aliceSent, m)
	}
	for _, content := range []string{"four", "five"} {
		_, err := messages.Send(testCtx(), SendInput{SenderID: bob.ID, ReceiverID: alice.ID, Content: content})
		require.NoError(t, err)
	}

	// One of Alice's messages carries edit history.
	_, err := messages.Edit(testCtx(), aliceSent[0].ID, alice.ID, "one, edited")
	require.NoError(t, err)

	// Unrelated traffic between Bob and Carol must survive.
	survivor, err := messages.Send(testCtx(), SendInput{SenderID: bob.ID, ReceiverID: carol.ID, Content: "keep me"})
	require.NoError(t, err)

	result, err := users.Delete(testCtx(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.MessagesDeleted)
	assert.Equal(t, int64(1), result.HistoryDeleted)
	assert.Equal(t, int64(5), result.NotificationsDeleted)

	// The user row is gone, not parked in a terminal state.
	assert.Equal(t, int64(0), countRows(t, db, &user.User{}, "id = ?", alice.ID))

	// No message, history or notification row still references Alice.
	assert.Equal(t, int64(0), countRows(t, db, &message.Message{}, "sender_id = ? OR receiver_id = ?", alice.ID, alice.ID))
	assert.Equal(t, int64(0), countRows(t, db, &message.MessageHistory{}, ""))
	assert.Equal(t, int64(0), countRows(t, db, &notification.Notification{}, "user_id = ?", alice.ID))

	// Bob and Carol's exchange is untouched.
	assert.Equal(t, int64(1), countRows(t, db, &message.Message{}, "id = ?", survivor.ID))
	assert.Equal(t, int64(1), countRows(t, db, &notification.Notification{}, "user_id = ?", carol.ID))

	// Deleted sender no longer resolves for message sends.
	_, err = messages.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "ghost"})
	assert.ErrorIs(t, err, courier_errors.ErrInvalidInput)
}

func TestDeleteUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := newUserService(db)

	_, err := svc.Delete(testCtx(), uuid.New())
	assert.ErrorIs(t, err, courier_errors.ErrNotFound)
}

func TestDeleteTwice(t *testing.T) {
	db := newTestDB(t)
	svc := newUserService(db)
	alice := createTestUser(t, db, "alice@test.com")

	_, err := svc.Delete(testCtx(), alice.ID)
	require.NoError(t, err)

	_, err = svc.Delete(testCtx(), alice.ID)
	assert.ErrorIs(t, err, courier_errors.ErrNotFound)
}

func TestDeleteWithNoData(t *testing.T) {
	db := newTestDB(t)
	svc := newUserService(db)
	alice := createTestUser(t, db, "alice@test.com")

	result, err := svc.Delete(testCtx(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{}, result)
}
