package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/models"
	"github.com/zlnvch/wire/store"
)

// DefaultAvatar is stored for users without an avatar of their own.
const DefaultAvatar = "default.png"

const minPasswordLength = 6

// bcrypt rejects longer passwords.
const maxPasswordLength = 72

type User struct {
	Key          int64
	Username     string
	PasswordHash string
	Avatar       string

	// ValidationErrors holds the reasons of the last failed Save.
	ValidationErrors []string

	svc             *Service
	password        string
	passwordConfirm string
}

func (s *Service) NewUser() *User {
	return &User{svc: s}
}

// Update copies the recognized form fields. The username is only taken for
// new users; once saved it never changes.
func (u *User) Update(fields map[string]string, isNew bool) {
	u.password = fields["password"]
	u.passwordConfirm = fields["password_confirm"]
	if isNew {
		u.Username = fields["username"]
	}
}

func (u *User) SetAvatar(ref string) {
	u.Avatar = ref
}

func (u *User) validate(ctx context.Context) error {
	var reasons []error

	if len(u.Username) < 1 {
		reasons = append(reasons, apperr.ErrUsernameEmpty)
	}

	if u.Key == 0 && u.Username != "" {
		taken, err := u.svc.usernames.Taken(ctx, u.Username)
		if err != nil {
			return err
		}
		if taken {
			reasons = append(reasons, apperr.ErrUsernameTaken)
		}
	}

	if len(u.password) < minPasswordLength && (len(u.password) > 0 || u.Key == 0) {
		reasons = append(reasons, apperr.ErrPasswordTooShort)
	}
	if len(u.password) > maxPasswordLength {
		reasons = append(reasons, apperr.ErrPasswordTooLong)
	}
	if u.password != u.passwordConfirm {
		reasons = append(reasons, apperr.ErrPasswordMismatch)
	}

	if len(reasons) > 0 {
		err := apperr.Validation("invalid user", reasons...)
		u.ValidationErrors = apperr.ReasonsOf(err)
		return err
	}
	u.ValidationErrors = nil
	return nil
}

// Save validates and persists the user. The first save assigns the key and
// claims the username; the claim is a conditional write, so of two racing
// registrations for one name exactly one succeeds.
func (u *User) Save(ctx context.Context) error {
	if err := u.validate(ctx); err != nil {
		return err
	}

	if u.password != "" {
		hash, err := u.svc.Hasher.Hash(u.password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	u.password, u.passwordConfirm = "", ""

	if u.Avatar == "" {
		u.Avatar = DefaultAvatar
	}

	record, err := json.Marshal(models.UserRecord{
		Username: u.Username,
		Password: u.PasswordHash,
		Avatar:   u.Avatar,
	})
	if err != nil {
		return err
	}

	if u.Key != 0 {
		if err := u.svc.Store.Set(ctx, userKey(u.Key), string(record)); err != nil {
			return storeFailure("save user", err)
		}
		u.svc.Logger.Debug(ctx, "user saved", "user", u.Key, "username", u.Username)
		return nil
	}

	key, err := u.svc.Allocator.Next(ctx, ClassUser)
	if err != nil {
		return err
	}

	ok, err := u.svc.usernames.Reserve(ctx, u.Username, key)
	if err != nil {
		return err
	}
	if !ok {
		err := apperr.Validation("invalid user", apperr.ErrUsernameTaken)
		u.ValidationErrors = apperr.ReasonsOf(err)
		return err
	}

	if err := u.register(ctx, key, string(record)); err != nil {
		u.unregister(ctx, key)
		return err
	}
	u.Key = key

	u.svc.Logger.Debug(ctx, "user saved", "user", u.Key, "username", u.Username)
	return nil
}

// register writes the record and directory entries of a user whose name
// was just reserved.
func (u *User) register(ctx context.Context, key int64, record string) error {
	st := u.svc.Store
	if err := st.Set(ctx, userKey(key), record); err != nil {
		return storeFailure("save user", err)
	}
	if err := st.ListPushHead(ctx, listUsers, formatKey(key)); err != nil {
		return storeFailure("list user", err)
	}
	if err := st.ListPushHead(ctx, listUsernames, u.Username); err != nil {
		return storeFailure("list username", err)
	}
	return nil
}

// unregister releases the username claim and whatever register managed to
// write, so a failed registration can be retried. Failures here are only
// logged; the caller gets the error from register.
func (u *User) unregister(ctx context.Context, key int64) {
	st := u.svc.Store
	if err := st.Del(ctx, usernameKey(u.Username), userKey(key)); err != nil {
		u.svc.Logger.Error(ctx, "username claim not released", "user", key, "username", u.Username, "error", err)
	}
	if err := st.ListRemove(ctx, listUsers, formatKey(key)); err != nil {
		u.svc.Logger.Warn(ctx, "user left in directory", "user", key, "error", err)
	}
	if err := st.ListRemove(ctx, listUsernames, u.Username); err != nil {
		u.svc.Logger.Warn(ctx, "username left in directory", "username", u.Username, "error", err)
	}
}

// Threads returns the keys of the threads the user belongs to, oldest
// membership first.
func (u *User) Threads(ctx context.Context) ([]int64, error) {
	return u.svc.memberships.List(ctx, u.Key)
}

func (s *Service) LoadUser(ctx context.Context, key int64) (*User, error) {
	val, err := s.Store.Get(ctx, userKey(key))
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, storeFailure("load user", err)
	}

	var record models.UserRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "user record unreadable", err)
	}

	u := &User{
		Key:          key,
		Username:     record.Username,
		PasswordHash: record.Password,
		Avatar:       record.Avatar,
		svc:          s,
	}
	if u.Avatar == "" {
		u.Avatar = DefaultAvatar
	}
	return u, nil
}

func (s *Service) LoadUserByUsername(ctx context.Context, username string) (*User, error) {
	key, err := s.usernames.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.LoadUser(ctx, key)
}

// Authenticate checks a username and password pair. An unknown user and a
// wrong password fail the same way.
func (s *Service) Authenticate(ctx context.Context, username string, password string) (*User, error) {
	u, err := s.LoadUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.Hasher.Compare(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return u, nil
}
