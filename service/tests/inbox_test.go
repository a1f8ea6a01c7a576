package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/service"
)

func TestInbox_LoadThreadsInMembershipOrder(t *testing.T) {
	svc, _, broker := setupService(t)
	allowPublish(broker)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	bob := createUser(t, svc, "bob")
	carol := createUser(t, svc, "carol")

	first := composeThread(t, svc, alice, "bob", "one")
	second := composeThread(t, svc, carol, "bob", "two")
	third := composeThread(t, svc, alice, "carol", "three")

	inbox := svc.NewInbox(bob)
	require.NoError(t, inbox.LoadThreads(ctx))

	require.Len(t, inbox.Threads, 2)
	assert.Equal(t, first.Key, inbox.Threads[0].Key)
	assert.Equal(t, second.Key, inbox.Threads[1].Key)
	assert.Equal(t, int64(2), inbox.UnreadCount())

	aliceInbox := svc.NewInbox(alice)
	require.NoError(t, aliceInbox.LoadThreads(ctx))
	require.Len(t, aliceInbox.Threads, 2)
	assert.Equal(t, third.Key, aliceInbox.Threads[1].Key)
	assert.Equal(t, int64(0), aliceInbox.UnreadCount())
}

func TestInbox_MarkAllRead(t *testing.T) {
	svc, _, broker := setupService(t)
	allowPublish(broker)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	bob := createUser(t, svc, "bob")

	thread := composeThread(t, svc, alice, "bob", "one")
	composeThread(t, svc, alice, "bob", "two")

	inbox := svc.NewInbox(bob)
	require.NoError(t, inbox.LoadThreads(ctx))
	require.Equal(t, int64(2), inbox.UnreadCount())

	require.NoError(t, inbox.MarkAllRead(ctx))
	assert.Equal(t, int64(0), inbox.UnreadCount())

	// alice's own counters are untouched
	_, err := svc.Reply(ctx, loadThread(t, svc, bob, thread.Key), "seen")
	require.NoError(t, err)
	aliceInbox := svc.NewInbox(alice)
	require.NoError(t, aliceInbox.LoadThreads(ctx))
	assert.Equal(t, int64(1), aliceInbox.UnreadCount())

	reloaded := svc.NewInbox(bob)
	require.NoError(t, reloaded.LoadThreads(ctx))
	assert.Equal(t, int64(0), reloaded.UnreadCount())
}

func TestInbox_SkipsMissingThread(t *testing.T) {
	svc, st, broker := setupService(t)
	allowPublish(broker)
	ctx := context.Background()
	alice := createUser(t, svc, "alice")
	bob := createUser(t, svc, "bob")

	composeThread(t, svc, alice, "bob", "one")
	kept := composeThread(t, svc, alice, "bob", "two")

	// the index still points at a thread whose record is gone
	require.NoError(t, st.Del(ctx, "thread:1"))

	inbox := svc.NewInbox(bob)
	require.NoError(t, inbox.LoadThreads(ctx))
	require.Len(t, inbox.Threads, 1)
	assert.Equal(t, kept.Key, inbox.Threads[0].Key)
}

func TestInbox_Empty(t *testing.T) {
	svc, _, _ := setupService(t)
	alice := createUser(t, svc, "alice")

	inbox := svc.NewInbox(alice)
	require.NoError(t, inbox.LoadThreads(context.Background()))
	assert.Empty(t, inbox.Threads)
	assert.Equal(t, int64(0), inbox.UnreadCount())
	assert.Equal(t, []*service.Thread{}, inbox.Threads)
}
