package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/cryptox"
	"github.com/zlnvch/wire/logging"
	"github.com/zlnvch/wire/service"
	"github.com/zlnvch/wire/store/memory"
)

func newTestService() *service.Service {
	return service.NewService(memory.NewMemoryWireStore(), nil, cryptox.NewBcryptHasher(4), cryptox.NewAESProvider(), logging.Discard())
}

func TestRunCommand_AddUser(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, runCommand(ctx, svc, []string{"adduser", "alice", "secret1"}, &out))
	assert.Equal(t, "created user alice with key 1\n", out.String())

	out.Reset()
	err := runCommand(ctx, svc, []string{"adduser", "alice", "secret1"}, &out)
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
	assert.Equal(t, "User exists.\n", out.String())
}

func TestRunCommand_InboxAndContacts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, runCommand(ctx, svc, []string{"adduser", "alice", "secret1"}, &out))
	require.NoError(t, runCommand(ctx, svc, []string{"adduser", "bob", "secret1"}, &out))

	alice, err := svc.LoadUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.NewContacts(alice).Add(ctx, "bob"))
	_, _, err = svc.Compose(ctx, alice, service.ComposeParams{Recipients: "bob", Subject: "hi", Body: "hello"})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runCommand(ctx, svc, []string{"inbox", "bob"}, &out))
	assert.Equal(t, "1\thi\t1 unread\t1 messages\n1 unread in total\n", out.String())

	out.Reset()
	require.NoError(t, runCommand(ctx, svc, []string{"contacts", "alice", "b"}, &out))
	assert.Equal(t, "bob\n", out.String())
}

func TestRunCommand_PostAndTimeline(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, runCommand(ctx, svc, []string{"adduser", "alice", "secret1"}, &out))
	require.NoError(t, runCommand(ctx, svc, []string{"adduser", "bob", "secret1"}, &out))
	bob, err := svc.LoadUserByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, svc.NewContacts(bob).Add(ctx, "alice"))

	out.Reset()
	require.NoError(t, runCommand(ctx, svc, []string{"post", "alice", "hello @bob"}, &out))
	assert.Equal(t, "posted update 1\n", out.String())

	out.Reset()
	err = runCommand(ctx, svc, []string{"post", "alice", "  "}, &out)
	assert.ErrorIs(t, err, apperr.ErrUpdateEmpty)
	assert.Equal(t, "Update must not be empty.\n", out.String())

	out.Reset()
	require.NoError(t, runCommand(ctx, svc, []string{"timeline", "bob"}, &out))
	assert.Equal(t, "1\talice\thello @bob\n", out.String())
}

func TestRunCommand_Usage(t *testing.T) {
	svc := newTestService()
	var out bytes.Buffer

	assert.EqualError(t, runCommand(context.Background(), svc, []string{"nope"}, &out), usage)
	assert.Error(t, runCommand(context.Background(), svc, []string{"inbox"}, &out))
}
