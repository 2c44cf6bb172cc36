package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/civic-alerts/internal/domain"
)

// throttleItem is the stored form of a ledger. ExpiresAt lets DynamoDB TTL
// reclaim ledgers that have been idle longer than the window.
type throttleItem struct {
	domain.ThrottleLedger
	ExpiresAt int64 `dynamodbav:"expires_at"`
}

// ThrottleRepo stores resend ledgers with optimistic concurrency on version.
type ThrottleRepo struct {
	client    *dynamodb.Client
	tableName string
	retention time.Duration
}

// NewThrottleRepo creates a repo whose items expire retention after their last write.
func NewThrottleRepo(client *dynamodb.Client, tableName string, retention time.Duration) *ThrottleRepo {
	return &ThrottleRepo{client: client, tableName: tableName, retention: retention}
}

// Get returns the ledger for key, or an empty ledger at version 0.
func (r *ThrottleRepo) Get(ctx context.Context, key string) (*domain.ThrottleLedger, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldThrottleKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get throttle ledger: %w", err)
	}
	if out.Item == nil {
		return &domain.ThrottleLedger{Key: key}, nil
	}
	var item throttleItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal throttle ledger: %w", err)
	}
	return &item.ThrottleLedger, nil
}

// Save writes ledger as version expectedVersion+1, failing with
// domain.ErrConflict when the stored version differs from expectedVersion.
func (r *ThrottleRepo) Save(ctx context.Context, ledger *domain.ThrottleLedger, expectedVersion int64) error {
	next := *ledger
	next.Version = expectedVersion + 1
	item, err := attributevalue.MarshalMap(throttleItem{
		ThrottleLedger: next,
		ExpiresAt:      time.Now().Add(r.retention).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal throttle ledger: %w", err)
	}
	cond, names, values := versionCondition(expectedVersion)
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("throttle ledger %s at version %d: %w", ledger.Key, expectedVersion, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put throttle ledger: %w", err)
	}
	ledger.Version = next.Version
	return nil
}

// versionCondition guards a put: the first write requires absence, later
// writes require the version read by the caller.
func versionCondition(expected int64) (string, map[string]string, map[string]types.AttributeValue) {
	if expected == 0 {
		return "attribute_not_exists(#k)", map[string]string{"#k": fieldThrottleKey}, nil
	}
	return "#ver = :expected",
		map[string]string{"#ver": fieldVersion},
		map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
}
