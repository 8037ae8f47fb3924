package awsadapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/phasemirror/dissonance-oracle/internal/adapter"
	"github.com/phasemirror/dissonance-oracle/internal/core/resilience"
	"github.com/phasemirror/dissonance-oracle/internal/domain"
)

// BlockCounter is the DynamoDB-backed BlockCounterAdapter. The table's
// sole key is "bucketKey" (domain.BlockCounterBucketKey), incremented
// with an atomic ADD update expression so concurrent Oracle instances
// never lose an increment to a read-modify-write race.
type BlockCounter struct {
	ddb   *dynamodb.Client
	table string
	cfg   Config
	clock func() time.Time
}

func (c *BlockCounter) hourEpoch() int64 {
	return c.clock().Unix() / 3600
}

func (c *BlockCounter) Increment(ctx context.Context, ruleID, orgID string) (int64, error) {
	key := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())
	var count int64
	err := resilience.WithRetry(ctx, c.cfg.retryPolicy("aws.blockcounter.increment"), func() error {
		resp, err := c.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(c.table),
			Key:              map[string]types.AttributeValue{"bucketKey": attrS(key)},
			UpdateExpression: aws.String("ADD #c :one"),
			ExpressionAttributeNames: map[string]string{
				"#c": "count",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
			},
			ReturnValues: types.ReturnValueUpdatedNew,
		})
		if err != nil {
			return fmt.Errorf("awsadapter: increment block counter: %w", err)
		}
		if n, ok := resp.Attributes["count"].(*types.AttributeValueMemberN); ok {
			count, _ = strconv.ParseInt(n.Value, 10, 64)
		}
		return nil
	})
	return count, err
}

func (c *BlockCounter) GetCount(ctx context.Context, ruleID, orgID string) (int64, error) {
	key := domain.BlockCounterBucketKey(ruleID, orgID, c.hourEpoch())
	var count int64
	err := resilience.WithRetry(ctx, c.cfg.retryPolicy("aws.blockcounter.get_count"), func() error {
		resp, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(c.table),
			Key:       map[string]types.AttributeValue{"bucketKey": attrS(key)},
		})
		if err != nil {
			return fmt.Errorf("awsadapter: get block counter: %w", err)
		}
		if resp.Item == nil {
			count = 0
			return nil
		}
		if n, ok := resp.Item["count"].(*types.AttributeValueMemberN); ok {
			count, _ = strconv.ParseInt(n.Value, 10, 64)
		}
		return nil
	})
	return count, err
}

func (c *BlockCounter) IsCircuitBroken(ctx context.Context, ruleID, orgID string, threshold int64) (bool, error) {
	count, err := c.GetCount(ctx, ruleID, orgID)
	if err != nil {
		return false, err
	}
	return count >= threshold, nil
}

var _ adapter.BlockCounterAdapter = (*BlockCounter)(nil)
