package store

import (
	"context"
	"errors"
)

// WireStore is the flat key-value backend the messaging layer is built on:
// string values, ordered lists, hashes of counters and lexicographically
// ordered sets. Only Incr is required to be linearizable across callers.
type WireStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	// SetNX writes value only if key does not exist and reports whether it did.
	SetNX(ctx context.Context, key string, value string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error

	Incr(ctx context.Context, key string) (int64, error)

	ListRange(ctx context.Context, key string) ([]string, error)
	ListPush(ctx context.Context, key string, value string) error
	ListPushHead(ctx context.Context, key string, value string) error
	// ListPushUnique appends value unless the list already holds it.
	ListPushUnique(ctx context.Context, key string, value string) (bool, error)
	ListRemove(ctx context.Context, key string, value string) error

	HashIncr(ctx context.Context, key string, field string, delta int64) (int64, error)
	HashSet(ctx context.Context, key string, field string, value int64) error
	HashGetAll(ctx context.Context, key string) (map[string]int64, error)
	HashDel(ctx context.Context, key string, fields ...string) error

	// LexAdd inserts member and reports whether it was not already present.
	LexAdd(ctx context.Context, key string, member string) (bool, error)
	LexRemove(ctx context.Context, key string, member string) error
	// LexRangePrefix returns members starting with prefix, in byte order.
	LexRangePrefix(ctx context.Context, key string, prefix string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
	ErrUnavailable     = errors.New("store unavailable")
)
