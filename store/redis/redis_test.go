package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/wire/store"
)

func TestLexRange_EmptyPrefixIsUnbounded(t *testing.T) {
	by := lexRange("")
	assert.Equal(t, "-", by.Min)
	assert.Equal(t, "+", by.Max)
}

func TestLexRange_BoundsEveryMemberWithPrefix(t *testing.T) {
	by := lexRange("al")
	assert.Equal(t, "[al", by.Min)
	assert.Equal(t, "[al\xff", by.Max)

	lo := strings.TrimPrefix(by.Min, "[")
	hi := strings.TrimPrefix(by.Max, "[")
	inside := func(member string) bool { return member >= lo && member <= hi }

	for _, member := range []string{"al", "alice", "alz", "alÿ", "al日本"} {
		assert.True(t, inside(member), member)
	}
	for _, member := range []string{"a", "ak", "am", "bob", "Alice"} {
		assert.False(t, inside(member), member)
	}
}

func TestParseCounters_SkipsNonIntegers(t *testing.T) {
	counts := parseCounters(map[string]string{
		"2":    "3",
		"3":    "0",
		"4":    "-1",
		"note": "hello",
		"5":    "1.5",
	})
	assert.Equal(t, map[string]int64{"2": 3, "3": 0, "4": -1}, counts)
	assert.Empty(t, parseCounters(nil))
}

// An unreachable server must read as unavailable, never as a missing key.
func TestTransportFailureIsUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRedisWireStore(client)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	_, err := s.Get(ctx, "user:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.NotErrorIs(t, err, store.ErrItemNotFound)

	_, err = s.ListPushUnique(ctx, "user:1:threads", "7")
	assert.ErrorIs(t, err, store.ErrUnavailable)

	_, err = s.LexRangePrefix(ctx, "user:1:contacts", "al")
	assert.ErrorIs(t, err, store.ErrUnavailable)

	assert.ErrorIs(t, s.Ping(ctx), store.ErrUnavailable)
}
