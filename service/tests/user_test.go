package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/cryptox"
	"github.com/zlnvch/wire/logging"
	"github.com/zlnvch/wire/models"
	"github.com/zlnvch/wire/service"
	"github.com/zlnvch/wire/store"
	storemocks "github.com/zlnvch/wire/store/mocks"
)

func TestUserSave_AssignsKeysAndIndexes(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	alice := createUser(t, svc, "alice")
	bob := createUser(t, svc, "bob")

	assert.Equal(t, int64(1), alice.Key)
	assert.Equal(t, int64(2), bob.Key)
	assert.Equal(t, service.DefaultAvatar, alice.Avatar)

	v, err := st.Get(ctx, "username:alice")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	raw, err := st.Get(ctx, "user:1")
	require.NoError(t, err)
	var record models.UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Equal(t, "alice", record.Username)
	assert.Equal(t, "default.png", record.Avatar)
	assert.NotEqual(t, "secret1", record.Password)

	users, _ := st.ListRange(ctx, "list:users")
	assert.Equal(t, []string{"2", "1"}, users)
	usernames, _ := st.ListRange(ctx, "list:usernames")
	assert.Equal(t, []string{"bob", "alice"}, usernames)
}

func TestUserSave_UsernameTaken(t *testing.T) {
	svc, _, _ := setupService(t)
	createUser(t, svc, "alice")

	dup := svc.NewUser()
	dup.Update(map[string]string{"username": "alice", "password": "secret2", "password_confirm": "secret2"}, true)
	err := dup.Save(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, []string{"User exists."}, dup.ValidationErrors)
	assert.Zero(t, dup.Key)
}

func TestUserSave_CollectsAllReasons(t *testing.T) {
	svc, st, _ := setupService(t)

	u := svc.NewUser()
	u.Update(map[string]string{"username": "", "password": "abc", "password_confirm": "abd"}, true)
	err := u.Save(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.IsRecoverable(err))
	assert.Equal(t, []string{
		"Username must be one character or longer.",
		"Password must be at least 6 characters.",
		"Passwords must match.",
	}, apperr.ReasonsOf(err))
	assert.ErrorIs(t, err, apperr.ErrPasswordMismatch)

	// nothing allocated for a rejected user
	exists, _ := st.Exists(context.Background(), "autoinc:user")
	assert.False(t, exists)
}

func TestUserSave_NewUserNeedsPassword(t *testing.T) {
	svc, _, _ := setupService(t)

	u := svc.NewUser()
	u.Update(map[string]string{"username": "alice"}, true)
	err := u.Save(context.Background())

	assert.ErrorIs(t, err, apperr.ErrPasswordTooShort)
}

func TestUserSave_ProfileEditKeepsPasswordAndUsername(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	createUser(t, svc, "alice")

	u, err := svc.LoadUserByUsername(ctx, "alice")
	require.NoError(t, err)
	hash := u.PasswordHash

	u.Update(map[string]string{"username": "mallory"}, false)
	u.SetAvatar("alice.png")
	require.NoError(t, u.Save(ctx))

	reloaded, err := svc.LoadUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", reloaded.Username)
	assert.Equal(t, hash, reloaded.PasswordHash)
	assert.Equal(t, "alice.png", reloaded.Avatar)
}

func TestUserSave_ChangePassword(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	createUser(t, svc, "alice")

	u, err := svc.LoadUser(ctx, 1)
	require.NoError(t, err)

	u.Update(map[string]string{"password": "short", "password_confirm": "short"}, false)
	assert.ErrorIs(t, u.Save(ctx), apperr.ErrPasswordTooShort)

	u.Update(map[string]string{"password": "newsecret", "password_confirm": "newsecret"}, false)
	require.NoError(t, u.Save(ctx))

	_, err = svc.Authenticate(ctx, "alice", "newsecret")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestUserSave_ConcurrentRegistrationHasOneWinner(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := svc.NewUser()
			u.Update(map[string]string{"username": "alice", "password": "secret1", "password_confirm": "secret1"}, true)
			errs[i] = u.Save(ctx)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
	}
	assert.Equal(t, 1, winners)
}

func TestLoadUser_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.LoadUser(ctx, 42)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	_, err = svc.LoadUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLoadUser_EmptyAvatarFallsBack(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "user:9", `{"username":"old","password":"x","avatar":""}`))

	u, err := svc.LoadUser(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "default.png", u.Avatar)
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	createUser(t, svc, "alice")

	u, err := svc.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Key)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost", "secret1")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestUserSave_StoreUnavailable(t *testing.T) {
	mockStore := new(storemocks.MockStore)
	svc := service.NewService(mockStore, nil, cryptox.NewBcryptHasher(4), cryptox.NewAESProvider(), logging.Discard())
	ctx := context.Background()

	mockStore.On("Exists", ctx, "username:alice").Return(false, store.ErrUnavailable)

	u := svc.NewUser()
	u.Update(map[string]string{"username": "alice", "password": "secret1", "password_confirm": "secret1"}, true)
	err := u.Save(ctx)

	require.Error(t, err)
	assert.Equal(t, apperr.KindStoreUnavailable, apperr.KindOf(err))
	assert.False(t, apperr.IsRecoverable(err))
	assert.True(t, errors.Is(err, store.ErrUnavailable))
	mockStore.AssertNotCalled(t, "Incr", mock.Anything, mock.Anything)
}

func TestUserSave_LostRaceBurnsKey(t *testing.T) {
	mockStore := new(storemocks.MockStore)
	svc := service.NewService(mockStore, nil, cryptox.NewBcryptHasher(4), cryptox.NewAESProvider(), logging.Discard())
	ctx := context.Background()

	// another registration claims the name between the check and the write
	mockStore.On("Exists", ctx, "username:alice").Return(false, nil)
	mockStore.On("Incr", ctx, "autoinc:user").Return(int64(5), nil)
	mockStore.On("SetNX", ctx, "username:alice", "5").Return(false, nil)

	u := svc.NewUser()
	u.Update(map[string]string{"username": "alice", "password": "secret1", "password_confirm": "secret1"}, true)
	err := u.Save(ctx)

	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
	assert.Zero(t, u.Key)
	mockStore.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertExpectations(t)
}

func TestUserSave_PasswordTooLong(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	long := strings.Repeat("x", 80)
	u := svc.NewUser()
	u.Update(map[string]string{"username": "alice", "password": long, "password_confirm": long}, true)
	err := u.Save(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPasswordTooLong)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.True(t, apperr.IsRecoverable(err))
	assert.Equal(t, []string{"Password must be at most 72 bytes."}, u.ValidationErrors)
	assert.Zero(t, u.Key)
}

func TestUserSave_FailedWriteReleasesUsername(t *testing.T) {
	mockStore := new(storemocks.MockStore)
	svc := service.NewService(mockStore, nil, cryptox.NewBcryptHasher(4), cryptox.NewAESProvider(), logging.Discard())
	ctx := context.Background()

	mockStore.On("Exists", ctx, "username:alice").Return(false, nil)
	mockStore.On("Incr", ctx, "autoinc:user").Return(int64(5), nil)
	mockStore.On("SetNX", ctx, "username:alice", "5").Return(true, nil)
	mockStore.On("Set", ctx, "user:5", mock.Anything).Return(store.ErrUnavailable)
	mockStore.On("Del", ctx, []string{"username:alice", "user:5"}).Return(nil).Once()
	mockStore.On("ListRemove", ctx, "list:users", "5").Return(nil).Once()
	mockStore.On("ListRemove", ctx, "list:usernames", "alice").Return(nil).Once()

	u := svc.NewUser()
	u.Update(map[string]string{"username": "alice", "password": "secret1", "password_confirm": "secret1"}, true)
	err := u.Save(ctx)

	assert.Equal(t, apperr.KindStoreUnavailable, apperr.KindOf(err))
	assert.Zero(t, u.Key)
	mockStore.AssertNotCalled(t, "ListPushHead", mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertExpectations(t)
}
