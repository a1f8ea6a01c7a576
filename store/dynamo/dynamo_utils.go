package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zlnvch/wire/store"
)

// BatchWriteItem accepts at most 25 requests per call.
const maxBatchWrite = 25

func newDynamoDBClient(ctx context.Context, devMode bool, dynamodbEndpoint string) (*dynamodb.Client, error) {
	var cfg aws.Config
	var err error

	if devMode {
		// Load config with dummy credentials and region for local/dev
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		return dynamodb.New(dynamodb.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: dynamodb.EndpointResolverFromURL(dynamodbEndpoint),
		}), nil
	}

	cfg, err = config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg), nil
}

func getTables(client *dynamodb.Client, ctx context.Context) ([]string, error) {
	output, err := client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, err
	}

	return output.TableNames, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s failed: %v", store.ErrUnavailable, op, err)
}

func isConditionFailed(err error) bool {
	var cce *types.ConditionalCheckFailedException
	return errors.As(err, &cce)
}

func itemKey(pk string, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// getItem retrieves an item of type T from DynamoDB by PK and SK
func getItem[T any](dynamoStore *DynamoWireStore, ctx context.Context, pk string, sk string) (T, error) {
	var zero T

	resp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(dynamoStore.tableName),
		Key:            itemKey(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return zero, unavailable("GetItem", err)
	}
	if resp.Item == nil {
		return zero, store.ErrItemNotFound
	}

	var item T
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return zero, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return item, nil
}

// putItem writes item unconditionally.
func putItem[T any](dynamoStore *DynamoWireStore, ctx context.Context, item T) error {
	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Item:      avMap,
	})
	if err != nil {
		return unavailable("PutItem", err)
	}
	return nil
}

// ensureItem inserts item only if its PK+SK does not exist yet and reports
// whether it was inserted.
func ensureItem[T any](dynamoStore *DynamoWireStore, ctx context.Context, item T) (bool, error) {
	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, fmt.Errorf("marshal error: %w", err)
	}

	if _, ok := avMap["PK"]; !ok {
		return false, errors.New("struct missing PK field")
	}
	if _, ok := avMap["SK"]; !ok {
		return false, errors.New("struct missing SK field")
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, unavailable("PutItem", err)
	}

	return true, nil
}

// queryByPK returns all items of type T with the given PK whose SK starts
// with skPrefix, ordered by SK. An empty prefix matches the whole partition.
func queryByPK[T any](dynamoStore *DynamoWireStore, ctx context.Context, pk string, skPrefix string) ([]T, error) {
	var results []T

	input := &dynamodb.QueryInput{
		TableName:              aws.String(dynamoStore.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead:   aws.Bool(true),
		ScanIndexForward: aws.Bool(true),
	}
	if skPrefix != "" {
		input.KeyConditionExpression = aws.String("PK = :pk AND begins_with(SK, :sk)")
		input.ExpressionAttributeValues[":sk"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("Query", err)
		}

		var pageItems []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page items: %w", err)
		}

		results = append(results, pageItems...)
	}

	return results, nil
}

// countByPK reports whether any item lives under the given PK without
// fetching it.
func countByPK(dynamoStore *DynamoWireStore, ctx context.Context, pk string) (int32, error) {
	out, err := dynamoStore.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(dynamoStore.tableName),
		Select:                 types.SelectCount,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return 0, unavailable("Query", err)
	}
	return out.Count, nil
}

// deleteKeys batch-deletes the given items in chunks of 25.
func deleteKeys(dynamoStore *DynamoWireStore, ctx context.Context, keys []dynamoKey) error {
	for start := 0; start < len(keys); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(keys))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: itemKey(k.PK, k.SK)},
			})
		}

		failed, err := writeBatchRequests[dynamoKey](dynamoStore, ctx, requests)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("%w: %d deletes left unprocessed", store.ErrUnavailable, len(failed))
		}
	}
	return nil
}

// writeBatchRequests handles batch writes (Put or Delete) with retries
// Returns any unprocessed items as []T
func writeBatchRequests[T any](dynamoStore *DynamoWireStore, ctx context.Context, requests []types.WriteRequest) ([]T, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	backoff := 50 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return unmarshalUnprocessed[T](requests), ctx.Err()
		default:
		}

		resp, err := dynamoStore.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				dynamoStore.tableName: requests,
			},
		})
		if err != nil {
			return unmarshalUnprocessed[T](requests), unavailable("BatchWriteItem", err)
		}

		unprocessed := resp.UnprocessedItems[dynamoStore.tableName]
		if len(unprocessed) == 0 {
			return nil, nil
		}

		requests = unprocessed

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unmarshalUnprocessed[T](requests), ctx.Err()
		case <-timer.C:
		}

		if backoff < time.Second {
			backoff *= 2
		}
	}
}

// helper to convert WriteRequests back to []T
func unmarshalUnprocessed[T any](reqs []types.WriteRequest) []T {
	failed := make([]T, 0, len(reqs))
	for _, wr := range reqs {
		if wr.PutRequest != nil {
			var item T
			if err := attributevalue.UnmarshalMap(wr.PutRequest.Item, &item); err == nil {
				failed = append(failed, item)
			}
		} else if wr.DeleteRequest != nil {
			var item T
			if err := attributevalue.UnmarshalMap(wr.DeleteRequest.Key, &item); err == nil {
				failed = append(failed, item)
			}
		}
	}
	return failed
}

// incrementCounter atomically adds delta to the numeric attribute N of the
// item at PK+SK, creating it at zero first, and returns the new value.
func incrementCounter(dynamoStore *DynamoWireStore, ctx context.Context, pk string, sk string, delta int64) (int64, error) {
	out, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(dynamoStore.tableName),
		Key:              itemKey(pk, sk),
		UpdateExpression: aws.String("ADD #n :delta"),
		ExpressionAttributeNames: map[string]string{
			"#n": "N",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":delta": &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, unavailable("UpdateItem", err)
	}

	attr, ok := out.Attributes["N"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("increment of %s/%s returned no counter", pk, sk)
	}
	return strconv.ParseInt(attr.Value, 10, 64)
}

// deleteItemWithCondition deletes an item by PK and SK, only if a specified
// numeric field equals a given value. An empty field deletes unconditionally.
func deleteItemWithCondition(dynamoStore *DynamoWireStore, ctx context.Context, pk string, sk string, conditionField string, expectedValue int64) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       itemKey(pk, sk),
	}

	if conditionField != "" {
		input.ConditionExpression = aws.String("#f = :val")
		input.ExpressionAttributeNames = map[string]string{"#f": conditionField}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":val": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedValue, 10)},
		}
	}

	_, err := dynamoStore.client.DeleteItem(ctx, input)
	if err != nil {
		if isConditionFailed(err) {
			return store.ErrConditionFailed
		}
		return unavailable("DeleteItem", err)
	}

	return nil
}

// listAppend pushes value onto the list item at pk, at the tail or the
// head, and bumps its version. With unique set the push is skipped when the
// list already contains value; the result reports whether it was pushed.
func listAppend(dynamoStore *DynamoWireStore, ctx context.Context, pk string, value string, head bool, unique bool) (bool, error) {
	appendExpr := "list_append(if_not_exists(#l, :empty), :vlist)"
	if head {
		appendExpr = "list_append(:vlist, if_not_exists(#l, :empty))"
	}

	input := &dynamodb.UpdateItemInput{
		TableName:        aws.String(dynamoStore.tableName),
		Key:              itemKey(pk, skList),
		UpdateExpression: aws.String("SET #l = " + appendExpr + ", #v = if_not_exists(#v, :zero) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#l": "L",
			"#v": "V",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":vlist": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: value},
			}},
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
	}
	if unique {
		input.ConditionExpression = aws.String("attribute_not_exists(#l) OR NOT contains(#l, :v)")
		input.ExpressionAttributeValues[":v"] = &types.AttributeValueMemberS{Value: value}
	}

	_, err := dynamoStore.client.UpdateItem(ctx, input)
	if err != nil {
		if unique && isConditionFailed(err) {
			return false, nil
		}
		return false, unavailable("UpdateItem", err)
	}
	return true, nil
}

// replaceList writes list over the item at pk only if its version is still
// expected, so concurrent pushes are never lost.
func replaceList(dynamoStore *DynamoWireStore, ctx context.Context, pk string, list []string, expected int64) error {
	if len(list) == 0 {
		return deleteItemWithCondition(dynamoStore, ctx, pk, skList, "V", expected)
	}

	avMap, err := attributevalue.MarshalMap(dynamoList{PK: pk, SK: skList, L: list, V: expected + 1})
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("#v = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#v": "V",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return store.ErrConditionFailed
		}
		return unavailable("PutItem", err)
	}
	return nil
}
