package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/service"
)

func TestCompose_EmptyBodyWritesNothing(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	createUser(t, svc, "bob")

	thread, msg, err := svc.Compose(ctx, alice, service.ComposeParams{Recipients: "bob", Body: "  \n"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrEmptyBody)
	assert.Equal(t, []string{"Message body must not be empty."}, msg.ValidationErrors)
	assert.Zero(t, thread.Key)

	exists, _ := st.Exists(ctx, "autoinc:thread")
	assert.False(t, exists)
	assert.Empty(t, threadKeys(t, alice))
}

func TestCompose_InvalidRecipientsWritesNothing(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	createUser(t, svc, "bob")

	thread, _, err := svc.Compose(ctx, alice, service.ComposeParams{Recipients: "bob, ghost, phantom", Body: "hi"})

	assert.Equal(t, apperr.KindInvalidRecipients, apperr.KindOf(err))
	assert.Equal(t, []string{"ghost", "phantom"}, thread.InvalidRecipients)
	assert.Empty(t, thread.Recipients)

	exists, _ := st.Exists(ctx, "autoinc:thread")
	assert.False(t, exists)
}

func TestCompose_CreatesActiveThread(t *testing.T) {
	svc, _, broker := setupService(t)
	allowPublish(broker)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	createUser(t, svc, "bob")

	thread, msg, err := svc.Compose(ctx, alice, service.ComposeParams{
		Recipients: "bob",
		Subject:    "lunch",
		Body:       "noon?",
	})
	require.NoError(t, err)

	assert.Equal(t, service.ThreadActive, thread.State)
	assert.Equal(t, "lunch", thread.Subject)
	assert.Equal(t, int64(1), msg.Key)
	assert.Equal(t, thread.Key, msg.ThreadKey)
	assert.Equal(t, alice.Key, msg.SenderKey)
	assert.Equal(t, "alice", msg.SenderUsername)
	assert.Equal(t, int64(1700000000), msg.SentAt.Unix())
	require.Len(t, thread.Messages, 1)
	assert.Same(t, msg, thread.Messages[0])
}

func TestReply_EmptyBody(t *testing.T) {
	svc, _, broker := setupService(t)
	allowPublish(broker)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	createUser(t, svc, "bob")

	thread := composeThread(t, svc, alice, "bob", "hi")
	_, err := svc.Reply(ctx, thread, "")
	assert.ErrorIs(t, err, apperr.ErrEmptyBody)
	assert.Len(t, thread.Messages, 1)
}
