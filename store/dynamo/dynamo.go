// Package dynamo implements store.WireStore on a single DynamoDB table keyed
// by PK (the wire key) and SK (the shape of the value under it).
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/zlnvch/wire/store"
)

// Optimistic list rewrites give up after this many version conflicts.
const maxListRetries = 5

type DynamoWireStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoWireStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoWireStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(tables, tableName) {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoWireStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoWireStore) Get(ctx context.Context, key string) (string, error) {
	item, err := getItem[dynamoValue](dynamoStore, ctx, key, skValue)
	if err != nil {
		return "", err
	}
	return item.S, nil
}

func (dynamoStore *DynamoWireStore) Set(ctx context.Context, key string, value string) error {
	return putItem(dynamoStore, ctx, dynamoValue{PK: key, SK: skValue, S: value})
}

func (dynamoStore *DynamoWireStore) SetNX(ctx context.Context, key string, value string) (bool, error) {
	return ensureItem(dynamoStore, ctx, dynamoValue{PK: key, SK: skValue, S: value})
}

func (dynamoStore *DynamoWireStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := countByPK(dynamoStore, ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Del removes every item of every key's partition.
func (dynamoStore *DynamoWireStore) Del(ctx context.Context, keys ...string) error {
	var all []dynamoKey
	for _, key := range keys {
		items, err := queryByPK[dynamoKey](dynamoStore, ctx, key, "")
		if err != nil {
			return err
		}
		all = append(all, items...)
	}
	return deleteKeys(dynamoStore, ctx, all)
}

func (dynamoStore *DynamoWireStore) Incr(ctx context.Context, key string) (int64, error) {
	return incrementCounter(dynamoStore, ctx, key, skValue, 1)
}

func (dynamoStore *DynamoWireStore) ListRange(ctx context.Context, key string) ([]string, error) {
	item, err := getItem[dynamoList](dynamoStore, ctx, key, skList)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return item.L, nil
}

func (dynamoStore *DynamoWireStore) ListPush(ctx context.Context, key string, value string) error {
	_, err := listAppend(dynamoStore, ctx, key, value, false, false)
	return err
}

func (dynamoStore *DynamoWireStore) ListPushHead(ctx context.Context, key string, value string) error {
	_, err := listAppend(dynamoStore, ctx, key, value, true, false)
	return err
}

func (dynamoStore *DynamoWireStore) ListPushUnique(ctx context.Context, key string, value string) (bool, error) {
	return listAppend(dynamoStore, ctx, key, value, false, true)
}

// ListRemove drops every occurrence of value. The list is rewritten under a
// version check and re-read on conflict.
func (dynamoStore *DynamoWireStore) ListRemove(ctx context.Context, key string, value string) error {
	for attempt := 0; attempt < maxListRetries; attempt++ {
		item, err := getItem[dynamoList](dynamoStore, ctx, key, skList)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				return nil
			}
			return err
		}

		kept := slices.DeleteFunc(slices.Clone(item.L), func(v string) bool { return v == value })
		if len(kept) == len(item.L) {
			return nil
		}

		err = replaceList(dynamoStore, ctx, key, kept, item.V)
		if errors.Is(err, store.ErrConditionFailed) {
			continue
		}
		return err
	}
	return fmt.Errorf("list %s: %w after %d attempts", key, store.ErrConditionFailed, maxListRetries)
}

func (dynamoStore *DynamoWireStore) HashIncr(ctx context.Context, key string, field string, delta int64) (int64, error) {
	return incrementCounter(dynamoStore, ctx, key, fieldSK(field), delta)
}

func (dynamoStore *DynamoWireStore) HashSet(ctx context.Context, key string, field string, value int64) error {
	return putItem(dynamoStore, ctx, dynamoField{PK: key, SK: fieldSK(field), N: value})
}

func (dynamoStore *DynamoWireStore) HashGetAll(ctx context.Context, key string) (map[string]int64, error) {
	items, err := queryByPK[dynamoField](dynamoStore, ctx, key, skFieldPrefix)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(items))
	for _, item := range items {
		counts[fieldFromSK(item.SK)] = item.N
	}
	return counts, nil
}

func (dynamoStore *DynamoWireStore) HashDel(ctx context.Context, key string, fields ...string) error {
	keys := make([]dynamoKey, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, dynamoKey{PK: key, SK: fieldSK(field)})
	}
	return deleteKeys(dynamoStore, ctx, keys)
}

func (dynamoStore *DynamoWireStore) LexAdd(ctx context.Context, key string, member string) (bool, error) {
	return ensureItem(dynamoStore, ctx, dynamoKey{PK: key, SK: lexSK(member)})
}

func (dynamoStore *DynamoWireStore) LexRemove(ctx context.Context, key string, member string) error {
	return deleteItemWithCondition(dynamoStore, ctx, key, lexSK(member), "", 0)
}

// Sort keys compare as UTF-8 bytes, so a begins_with query returns members
// in the same order as a redis lex range.
func (dynamoStore *DynamoWireStore) LexRangePrefix(ctx context.Context, key string, prefix string) ([]string, error) {
	items, err := queryByPK[dynamoKey](dynamoStore, ctx, key, lexSK(prefix))
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(items))
	for _, item := range items {
		members = append(members, memberFromSK(item.SK))
	}
	return members, nil
}

func (dynamoStore *DynamoWireStore) Ping(ctx context.Context) error {
	_, err := dynamoStore.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(dynamoStore.tableName),
	})
	if err != nil {
		return unavailable("DescribeTable", err)
	}
	return nil
}

func (dynamoStore *DynamoWireStore) Close() error {
	return nil
}
