package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/zlnvch/wire/store"
)

type RedisWireStore struct {
	client redis.UniversalClient
}

// Dial connects to the redis endpoint and pings it. Outside dev mode the
// connection uses TLS, as managed redis endpoints require it.
func Dial(ctx context.Context, devMode bool, redisEndpoint string) (redis.UniversalClient, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:      redisEndpoint,
			TLSConfig: &tls.Config{},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func NewRedisWireStore(client redis.UniversalClient) *RedisWireStore {
	return &RedisWireStore{client: client}
}

// unavailable tags transport failures so callers can tell them apart from
// a missing key.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func (redisStore *RedisWireStore) Get(ctx context.Context, key string) (string, error) {
	val, err := redisStore.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", store.ErrItemNotFound
		}
		return "", unavailable(err)
	}
	return val, nil
}

func (redisStore *RedisWireStore) Set(ctx context.Context, key string, value string) error {
	return unavailable(redisStore.client.Set(ctx, key, value, 0).Err())
}

func (redisStore *RedisWireStore) SetNX(ctx context.Context, key string, value string) (bool, error) {
	ok, err := redisStore.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (redisStore *RedisWireStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := redisStore.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// Del removes each key separately in one pipeline: keys of different
// entities may live in different cluster slots.
func (redisStore *RedisWireStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := redisStore.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	_, err := pipe.Exec(ctx)
	return unavailable(err)
}

func (redisStore *RedisWireStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := redisStore.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (redisStore *RedisWireStore) ListRange(ctx context.Context, key string) ([]string, error) {
	vals, err := redisStore.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return vals, nil
}

func (redisStore *RedisWireStore) ListPush(ctx context.Context, key string, value string) error {
	return unavailable(redisStore.client.RPush(ctx, key, value).Err())
}

func (redisStore *RedisWireStore) ListPushHead(ctx context.Context, key string, value string) error {
	return unavailable(redisStore.client.LPush(ctx, key, value).Err())
}

// The membership check and the push run as one script so a concurrent
// re-add cannot insert the same thread key twice.
var pushUniqueScript = redis.NewScript(`
if redis.call('LPOS', KEYS[1], ARGV[1]) then
	return 0
end
redis.call('RPUSH', KEYS[1], ARGV[1])
return 1
`)

func (redisStore *RedisWireStore) ListPushUnique(ctx context.Context, key string, value string) (bool, error) {
	added, err := pushUniqueScript.Run(ctx, redisStore.client, []string{key}, value).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return added == 1, nil
}

func (redisStore *RedisWireStore) ListRemove(ctx context.Context, key string, value string) error {
	return unavailable(redisStore.client.LRem(ctx, key, 0, value).Err())
}

func (redisStore *RedisWireStore) HashIncr(ctx context.Context, key string, field string, delta int64) (int64, error) {
	n, err := redisStore.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (redisStore *RedisWireStore) HashSet(ctx context.Context, key string, field string, value int64) error {
	return unavailable(redisStore.client.HSet(ctx, key, field, value).Err())
}

func (redisStore *RedisWireStore) HashGetAll(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := redisStore.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return parseCounters(raw), nil
}

// parseCounters keeps the fields that hold integers; anything else in the
// hash is not a counter and is ignored.
func parseCounters(raw map[string]string) map[string]int64 {
	counts := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[field] = n
	}
	return counts
}

func (redisStore *RedisWireStore) HashDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return unavailable(redisStore.client.HDel(ctx, key, fields...).Err())
}

// Lex sets are sorted sets where every member has score 0, so ZRANGEBYLEX
// orders and filters them by raw bytes.
func (redisStore *RedisWireStore) LexAdd(ctx context.Context, key string, member string) (bool, error) {
	n, err := redisStore.client.ZAddNX(ctx, key, redis.Z{Score: 0, Member: member}).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func (redisStore *RedisWireStore) LexRemove(ctx context.Context, key string, member string) error {
	return unavailable(redisStore.client.ZRem(ctx, key, member).Err())
}

func (redisStore *RedisWireStore) LexRangePrefix(ctx context.Context, key string, prefix string) ([]string, error) {
	members, err := redisStore.client.ZRangeByLex(ctx, key, lexRange(prefix)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return members, nil
}

// lexRange bounds every member starting with prefix. 0xff never occurs in
// UTF-8, so no such member sorts after prefix+"\xff".
func lexRange(prefix string) *redis.ZRangeBy {
	if prefix == "" {
		return &redis.ZRangeBy{Min: "-", Max: "+"}
	}
	return &redis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
}

func (redisStore *RedisWireStore) Ping(ctx context.Context) error {
	return unavailable(redisStore.client.Ping(ctx).Err())
}

func (redisStore *RedisWireStore) Close() error {
	return redisStore.client.Close()
}
