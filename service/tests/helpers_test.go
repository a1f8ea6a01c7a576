package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/cryptox"
	eventmocks "github.com/zlnvch/wire/events/mocks"
	"github.com/zlnvch/wire/logging"
	"github.com/zlnvch/wire/service"
	"github.com/zlnvch/wire/store/memory"
)

// Helper to setup the service on an in-memory store. Publish calls are
// accepted by default; tests that care add their own expectation first.
func setupService(t *testing.T) (*service.Service, *memory.MemoryWireStore, *eventmocks.MockBroker) {
	t.Helper()
	st := memory.NewMemoryWireStore()
	broker := new(eventmocks.MockBroker)

	svc := service.NewService(
		st,
		broker,
		cryptox.NewBcryptHasher(4),
		cryptox.NewAESProvider(),
		logging.Discard(),
	)
	svc.SetClock(func() time.Time { return time.Unix(1700000000, 0) })

	return svc, st, broker
}

func allowPublish(broker *eventmocks.MockBroker) {
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	}).Once()
	return done
}

func waitForSignal(t *testing.T, done chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for "+what)
	}
}

func createUser(t *testing.T, svc *service.Service, username string) *service.User {
	t.Helper()
	u := svc.NewUser()
	u.Update(map[string]string{
		"username":         username,
		"password":         "secret1",
		"password_confirm": "secret1",
	}, true)
	require.NoError(t, u.Save(context.Background()))
	return u
}

func composeThread(t *testing.T, svc *service.Service, sender *service.User, recipients string, body string) *service.Thread {
	t.Helper()
	thread, _, err := svc.Compose(context.Background(), sender, service.ComposeParams{
		Recipients: recipients,
		Subject:    "hello",
		Body:       body,
	})
	require.NoError(t, err)
	return thread
}

func loadThread(t *testing.T, svc *service.Service, user *service.User, key int64) *service.Thread {
	t.Helper()
	thread := svc.NewThread(user)
	require.NoError(t, thread.Load(context.Background(), key))
	return thread
}

func threadKeys(t *testing.T, user *service.User) []int64 {
	t.Helper()
	keys, err := user.Threads(context.Background())
	require.NoError(t, err)
	return keys
}
