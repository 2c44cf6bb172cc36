package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/civic-alerts/internal/domain"
)

// IssueRepo reads issues and writes their status. Issue creation belongs to
// the CRUD service that owns the table.
type IssueRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewIssueRepo(client *dynamodb.Client, tableName string) *IssueRepo {
	return &IssueRepo{client: client, tableName: tableName}
}

func (r *IssueRepo) Get(ctx context.Context, issueID string) (*domain.Issue, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("issue_id", issueID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("issue %s: %w", issueID, domain.ErrNotFound)
	}
	var i domain.Issue
	if err := attributevalue.UnmarshalMap(out.Item, &i); err != nil {
		return nil, fmt.Errorf("unmarshal issue: %w", err)
	}
	return &i, nil
}

// UpdateStatus moves the issue from one status to another. The write only
// lands while the stored status still equals from; otherwise it fails with
// domain.ErrConflict, or domain.ErrNotFound when the issue is gone.
func (r *IssueRepo) UpdateStatus(ctx context.Context, issueID string, from, to domain.IssueStatus, updatedAt time.Time) error {
	input, err := statusUpdateInput(r.tableName, issueID, from, to, updatedAt)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, input)
	if err != nil {
		return statusUpdateError(issueID, from, err)
	}
	return nil
}

func statusUpdateInput(table, issueID string, from, to domain.IssueStatus, updatedAt time.Time) (*dynamodb.UpdateItemInput, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    string(to),
		fieldUpdatedAt: updatedAt,
	})
	if err != nil {
		return nil, err
	}
	ue.Names["#cur"] = fieldStatus
	ue.Values[":from"] = &types.AttributeValueMemberS{Value: string(from)}
	return &dynamodb.UpdateItemInput{
		TableName:                           aws.String(table),
		Key:                                 strKey("issue_id", issueID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("attribute_exists(issue_id) AND #cur = :from"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}, nil
}

// statusUpdateError tells a vanished issue apart from a concurrent status
// change using the item returned with the failed condition.
func statusUpdateError(issueID string, from domain.IssueStatus, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return fmt.Errorf("update issue status: %w", err)
	}
	if len(ccf.Item) == 0 {
		return fmt.Errorf("issue %s: %w", issueID, domain.ErrNotFound)
	}
	return fmt.Errorf("issue %s no longer %s: %w", issueID, from, domain.ErrConflict)
}
