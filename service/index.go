package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/store"
)

// The two secondary indexes of the layer. User and Thread only touch
// username:<name> and user:<key>:threads through these, so every write to
// either index is one of the calls below.

// usernameIndex maps username:<name> to a user key.
type usernameIndex struct {
	store store.WireStore
}

func (i usernameIndex) Lookup(ctx context.Context, username string) (int64, error) {
	val, err := i.store.Get(ctx, usernameKey(username))
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return 0, apperr.ErrUserNotFound
		}
		return 0, storeFailure("lookup username", err)
	}
	key, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// a half-written entry reads like a missing one
		return 0, apperr.ErrUserNotFound
	}
	return key, nil
}

func (i usernameIndex) Taken(ctx context.Context, username string) (bool, error) {
	taken, err := i.store.Exists(ctx, usernameKey(username))
	if err != nil {
		return false, storeFailure("check username", err)
	}
	return taken, nil
}

// Reserve claims username for key and reports false if someone else holds it.
func (i usernameIndex) Reserve(ctx context.Context, username string, key int64) (bool, error) {
	ok, err := i.store.SetNX(ctx, usernameKey(username), formatKey(key))
	if err != nil {
		return false, storeFailure("reserve username", err)
	}
	return ok, nil
}

// membershipIndex maps user:<key>:threads to the thread keys the user
// belongs to, oldest membership first.
type membershipIndex struct {
	store store.WireStore
}

// Upsert appends threadKey unless the user's list already holds it.
func (i membershipIndex) Upsert(ctx context.Context, userKey int64, threadKey int64) error {
	if _, err := i.store.ListPushUnique(ctx, userThreadsKey(userKey), formatKey(threadKey)); err != nil {
		return storeFailure("add thread membership", err)
	}
	return nil
}

func (i membershipIndex) Remove(ctx context.Context, userKey int64, threadKey int64) error {
	if err := i.store.ListRemove(ctx, userThreadsKey(userKey), formatKey(threadKey)); err != nil {
		return storeFailure("remove thread membership", err)
	}
	return nil
}

func (i membershipIndex) List(ctx context.Context, userKey int64) ([]int64, error) {
	vals, err := i.store.ListRange(ctx, userThreadsKey(userKey))
	if err != nil {
		return nil, storeFailure("list thread memberships", err)
	}
	return parseKeys(vals), nil
}

// parseKeys converts stored key strings, dropping anything that is not one.
func parseKeys(vals []string) []int64 {
	keys := make([]int64, 0, len(vals))
	for _, v := range vals {
		k, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
