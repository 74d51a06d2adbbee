package services

import (
	"testing"
	"time"

	"courier/internal/domain/message"
	"courier/internal/domain/notification"
	courier_errors "courier/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCreatesExactlyOneNotification(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	msg, err := svc.Send(testCtx(), SendInput{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		Content:    "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.Edited)
	assert.Equal(t, int64(1), msg.Version)

	var notifs []notification.Notification
	require.NoError(t, db.Where("message_id = ?", msg.ID).Find(&notifs).Error)
	require.Len(t, notifs, 1)
	assert.Equal(t, bob.ID, notifs[0].UserID)
	assert.False(t, notifs[0].IsRead)

	// The sender never gets a notification for their own message.
	assert.Equal(t, int64(0), countRows(t, db, &notification.Notification{}, "user_id = ?", alice.ID))
}

func TestSendValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	_, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "   "})
	assert.ErrorIs(t, err, courier_errors.ErrInvalidInput)

	_, err = svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: uuid.New(), Content: "hi"})
	assert.ErrorIs(t, err, courier_errors.ErrInvalidInput)

	_, err = svc.Send(testCtx(), SendInput{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		Content:    "reply to nothing",
		ParentID:   uuid.NullUUID{UUID: uuid.New(), Valid: true},
	})
	assert.ErrorIs(t, err, courier_errors.ErrInvalidInput)

	// Nothing should have been persisted by the failed attempts.
	assert.Equal(t, int64(0), countRows(t, db, &message.Message{}, ""))
	assert.Equal(t, int64(0), countRows(t, db, &notification.Notification{}, ""))
}

func TestEditLogsHistoryAndMarksEdited(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	msg, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)

	updated, err := svc.Edit(testCtx(), msg.ID, alice.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Content)
	assert.True(t, updated.Edited)
	assert.Equal(t, int64(2), updated.Version)

	history, err := svc.History(testCtx(), msg.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].OldContent)

	// Second edit stacks another entry, newest first.
	_, err = svc.Edit(testCtx(), msg.ID, alice.ID, "hello again")
	require.NoError(t, err)

	history, err = svc.History(testCtx(), msg.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].OldContent)
	assert.Equal(t, "hi", history[1].OldContent)
}

func TestEditSameContentIsNoOp(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	msg, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)

	updated, err := svc.Edit(testCtx(), msg.ID, alice.ID, "hi")
	require.NoError(t, err)
	assert.False(t, updated.Edited)
	assert.Equal(t, int64(1), updated.Version)

	assert.Equal(t, int64(0), countRows(t, db, &message.MessageHistory{}, "message_id = ?", msg.ID))
}

func TestEditPermissionsAndMissing(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")
	carol := createTestUser(t, db, "carol@test.com")

	msg, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)

	_, err = svc.Edit(testCtx(), msg.ID, carol.ID, "hijacked")
	assert.ErrorIs(t, err, courier_errors.ErrForbidden)

	_, err = svc.Edit(testCtx(), uuid.New(), alice.ID, "hello")
	assert.ErrorIs(t, err, courier_errors.ErrNotFound)

	// The receiver may edit too.
	_, err = svc.Edit(testCtx(), msg.ID, bob.ID, "receiver edit")
	assert.NoError(t, err)
}

func TestEditConflictOnStaleVersion(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	msg, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"})
	require.NoError(t, err)

	// Simulate a concurrent edit bumping the version underneath us.
	repo := newMessageService(db, 0).messages
	rows, err := repo.UpdateContentVersioned(testCtx(), msg.ID, "racing edit", msg.Version)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	rows, err = repo.UpdateContentVersioned(testCtx(), msg.ID, "stale edit", msg.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestUnreadForUserFiltersAndOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	base := time.Now().Add(-time.Hour)
	second := createTestMessage(t, db, alice.ID, bob.ID, "second", base.Add(2*time.Minute), false)
	first := createTestMessage(t, db, alice.ID, bob.ID, "first", base.Add(time.Minute), false)
	createTestMessage(t, db, alice.ID, bob.ID, "already read", base, true)
	createTestMessage(t, db, bob.ID, alice.ID, "sent by bob", base, false)

	unread, err := svc.UnreadForUser(testCtx(), bob.ID)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, first.ID, unread[0].ID)
	assert.Equal(t, second.ID, unread[1].ID)

	count, err := svc.CountUnreadForUser(testCtx(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(unread)), count)
}

func TestStreamUnreadForUserBatches(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 3)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	base := time.Now().Add(-time.Hour)
	total := 8
	for i := 0; i < total; i++ {
		createTestMessage(t, db, alice.ID, bob.ID, "msg", base.Add(time.Duration(i)*time.Second), false)
	}

	var batches [][]message.Message
	err := svc.StreamUnreadForUser(testCtx(), bob.ID, func(batch []message.Message) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 2)

	// Batches arrive oldest first with no repeats.
	seen := make(map[uuid.UUID]bool)
	var prev time.Time
	for _, batch := range batches {
		for _, m := range batch {
			assert.False(t, seen[m.ID])
			seen[m.ID] = true
			assert.False(t, m.CreatedAt.Before(prev))
			prev = m.CreatedAt
		}
	}
	assert.Len(t, seen, total)
}

func TestMarkAsReadForUserIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")

	base := time.Now().Add(-time.Hour)
	m1 := createTestMessage(t, db, alice.ID, bob.ID, "one", base, false)
	m2 := createTestMessage(t, db, alice.ID, bob.ID, "two", base.Add(time.Second), false)
	foreign := createTestMessage(t, db, bob.ID, alice.ID, "not bob's to read", base, false)

	ids := []uuid.UUID{m1.ID, m2.ID, foreign.ID, uuid.New()}
	changed, err := svc.MarkAsReadForUser(testCtx(), bob.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = svc.MarkAsReadForUser(testCtx(), bob.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	count, err := svc.CountUnreadForUser(testCtx(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Alice's copy stays unread.
	var check message.Message
	require.NoError(t, db.First(&check, "id = ?", foreign.ID).Error)
	assert.False(t, check.Read)
}

func TestUnreadCountBySender(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")
	carol := createTestUser(t, db, "carol@test.com")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		createTestMessage(t, db, alice.ID, carol.ID, "from alice", base.Add(time.Duration(i)*time.Second), false)
	}
	createTestMessage(t, db, bob.ID, carol.ID, "from bob", base, false)
	createTestMessage(t, db, bob.ID, carol.ID, "read already", base, true)

	rows, err := svc.UnreadCountBySender(testCtx(), carol.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, alice.ID, rows[0].SenderID)
	assert.Equal(t, int64(3), rows[0].Count)
	assert.Equal(t, bob.ID, rows[1].SenderID)
	assert.Equal(t, int64(1), rows[1].Count)
}

func TestConversationThreadsReplies(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")
	bob := createTestUser(t, db, "bob@test.com")
	carol := createTestUser(t, db, "carol@test.com")

	root, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "root"})
	require.NoError(t, err)
	reply, err := svc.Send(testCtx(), SendInput{
		SenderID: bob.ID, ReceiverID: alice.ID, Content: "reply",
		ParentID: uuid.NullUUID{UUID: root.ID, Valid: true},
	})
	require.NoError(t, err)
	_, err = svc.Send(testCtx(), SendInput{
		SenderID: alice.ID, ReceiverID: bob.ID, Content: "nested",
		ParentID: uuid.NullUUID{UUID: reply.ID, Valid: true},
	})
	require.NoError(t, err)
	other, err := svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "second root"})
	require.NoError(t, err)

	// Traffic with a third user stays out of the pair's conversation.
	_, err = svc.Send(testCtx(), SendInput{SenderID: alice.ID, ReceiverID: carol.ID, Content: "unrelated"})
	require.NoError(t, err)

	threads, err := svc.Conversation(testCtx(), alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, root.ID, threads[0].Message.ID)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, reply.ID, threads[0].Replies[0].Message.ID)
	require.Len(t, threads[0].Replies[0].Replies, 1)
	assert.Equal(t, "nested", threads[0].Replies[0].Replies[0].Message.Content)

	assert.Equal(t, other.ID, threads[1].Message.ID)
	assert.Empty(t, threads[1].Replies)
}

func TestConversationUnknownParticipant(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)
	alice := createTestUser(t, db, "alice@test.com")

	_, err := svc.Conversation(testCtx(), alice.ID, uuid.New())
	assert.ErrorIs(t, err, courier_errors.ErrNotFound)
}

func TestBuildThreadsSurvivesCycle(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	messages := []message.Message{
		{ID: a, Content: "a", ParentMessageID: uuid.NullUUID{UUID: b, Valid: true}},
		{ID: b, Content: "b", ParentMessageID: uuid.NullUUID{UUID: a, Valid: true}},
	}

	threads := buildThreads(messages)
	require.NotEmpty(t, threads)

	// Every message appears exactly once despite the cycle.
	seen := make(map[uuid.UUID]int)
	var walk func(nodes []*ThreadNode)
	walk = func(nodes []*ThreadNode) {
		for _, n := range nodes {
			seen[n.Message.ID]++
			walk(n.Replies)
		}
	}
	walk(threads)
	assert.Equal(t, 1, seen[a])
	assert.Equal(t, 1, seen[b])
}

func TestHistoryUnknownMessage(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, 0)

	_, err := svc.History(testCtx(), uuid.New())
	assert.ErrorIs(t, err, courier_errors.ErrNotFound)
}
